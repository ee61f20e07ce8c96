package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-nosql/internal/domain"
)

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// UserRepo provides typed DynamoDB operations for the users table.
// Email uniqueness is backed by a second table holding one item per claimed
// address, written in the same transaction as the user.
type UserRepo struct {
	client      API
	tableName   string
	emailsTable string
}

func NewUserRepo(client API, tableName, emailsTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, emailsTable: emailsTable}
}

// Create inserts a new user. It returns domain.ErrConflict when the email is
// already claimed.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.emailsTable),
				Item:                     map[string]types.AttributeValue{fieldEmail: &types.AttributeValueMemberS{Value: u.Email}, fieldUserID: &types.AttributeValueMemberS{Value: u.UserID}},
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": fieldUserID},
			}},
		},
	})
	if err != nil {
		if isTransactionConditionFailed(err) {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	users, err := r.queryGSI(ctx, indexEmail, fieldEmail, email, "", 0)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user with email: %w", domain.ErrNotFound)
	}
	return &users[0], nil
}

// Update applies a partial SET to the user item. updated_at is always set.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	sets := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		sets[k] = v
	}
	sets[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(sets)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return err
	}
	return nil
}

// RecordLogin stamps the last successful login.
func (r *UserRepo) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldLastLogin: at.UTC()})
}

// SetResetToken stores a reset token together with its expiry, replacing any
// previous pair.
func (r *UserRepo) SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return r.Update(ctx, userID, map[string]interface{}{
		fieldResetPasswordToken:          token,
		fieldResetPasswordTokenExpiresAt: expiresAt.Unix(),
	})
}

// ConsumeVerificationToken marks the owner of code as verified and removes
// the token pair in a single conditional write. The condition re-checks the
// token and its expiry, so of two concurrent requests with the same code at
// most one succeeds. Wrong and expired codes both yield domain.ErrInvalidToken.
func (r *UserRepo) ConsumeVerificationToken(ctx context.Context, code string, now time.Time) (*domain.User, error) {
	return r.consumeToken(ctx, tokenFields{
		index:   indexVerificationToken,
		token:   fieldVerificationToken,
		expires: fieldVerificationTokenExpiresAt,
	}, code, now, map[string]interface{}{fieldIsVerified: true})
}

// ConsumeResetToken replaces the password hash of the owner of token and
// removes the reset token pair in a single conditional write.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*domain.User, error) {
	return r.consumeToken(ctx, tokenFields{
		index:   indexResetPasswordToken,
		token:   fieldResetPasswordToken,
		expires: fieldResetPasswordTokenExpiresAt,
	}, token, now, map[string]interface{}{fieldPasswordHash: passwordHash})
}

type tokenFields struct {
	index   string
	token   string
	expires string
}

func (r *UserRepo) consumeToken(ctx context.Context, f tokenFields, value string, now time.Time, sets map[string]interface{}) (*domain.User, error) {
	if value == "" {
		return nil, domain.ErrInvalidToken
	}
	// The GSI is eventually consistent and only narrows the candidates. The
	// conditional update below is the authority.
	candidates, err := r.queryGSI(ctx, f.index, f.token, value, f.expires, now.Unix())
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		u, err := r.clearToken(ctx, c.UserID, f, value, now, sets)
		if err == nil {
			return u, nil
		}
		if !isConditionFailed(err) {
			return nil, err
		}
	}
	return nil, domain.ErrInvalidToken
}

func (r *UserRepo) clearToken(ctx context.Context, userID string, f tokenFields, value string, now time.Time, sets map[string]interface{}) (*domain.User, error) {
	all := make(map[string]interface{}, len(sets)+1)
	for k, v := range sets {
		all[k] = v
	}
	all[fieldUpdatedAt] = now.UTC()
	ue, err := buildUpdateExpr(all, f.token, f.expires)
	if err != nil {
		return nil, err
	}
	ue.Names["#tok"] = f.token
	ue.Names["#exp"] = f.expires
	ue.Values[":tok"] = &types.AttributeValueMemberS{Value: value}
	ue.Values[":now"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#tok = :tok AND #exp > :now"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// queryGSI returns the items whose attr equals value. When expiresAttr is set,
// items with expiresAttr <= notBefore are filtered out server-side.
func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value, expiresAttr string, notBefore int64) ([]domain.User, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
	}
	if expiresAttr != "" {
		input.FilterExpression = aws.String("#x > :now")
		input.ExpressionAttributeNames["#x"] = expiresAttr
		input.ExpressionAttributeValues[":now"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", notBefore)}
	} else {
		input.Limit = aws.Int32(1)
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, err
	}
	var users []domain.User
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, err
	}
	return users, nil
}
