package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func (m *mockAPI) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.CreateTableOutput)
	return out, args.Error(1)
}

// --- helpers ---

func newRepo(api *mockAPI) *UserRepo {
	return NewUserRepo(api, "users", "user_emails")
}

func userItem(t *testing.T, u domain.User) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(u)
	require.NoError(t, err)
	return item
}

func condFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

// --- Create ---

func TestCreate_WritesUserAndEmailClaimInOneTransaction(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 2 {
			return false
		}
		claim, user := in.TransactItems[0].Put, in.TransactItems[1].Put
		return aws.ToString(claim.TableName) == "user_emails" &&
			aws.ToString(user.TableName) == "users" &&
			claim.ConditionExpression != nil && user.ConditionExpression != nil
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	err := newRepo(api).Create(context.Background(), &domain.User{UserID: "u1", Email: "ada@x.com"})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestCreate_OmitsEmptyTokenAttributes(t *testing.T) {
	api := &mockAPI{}
	var written map[string]types.AttributeValue
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(1).(*dynamodb.TransactWriteItemsInput).TransactItems[1].Put.Item
	}).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	err := newRepo(api).Create(context.Background(), &domain.User{UserID: "u1", Email: "ada@x.com", VerificationToken: "123456", VerificationTokenExpiresAt: 42})
	require.NoError(t, err)

	assert.Contains(t, written, fieldVerificationToken)
	assert.NotContains(t, written, fieldResetPasswordToken)
	assert.NotContains(t, written, fieldResetPasswordTokenExpiresAt)
}

func TestCreate_DuplicateEmail_ReturnsConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}, {Code: aws.String("None")}},
	})

	err := newRepo(api).Create(context.Background(), &domain.User{UserID: "u1", Email: "ada@x.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestCreate_OtherFailure_IsNotConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, errors.New("network down"))

	err := newRepo(api).Create(context.Background(), &domain.User{UserID: "u1", Email: "ada@x.com"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrConflict))
}

// --- Get / GetByEmail ---

func TestGet_Missing_ReturnsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := newRepo(api).Get(context.Background(), "u1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetByEmail_QueriesEmailIndex(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == indexEmail && in.FilterExpression == nil
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		userItem(t, domain.User{UserID: "u1", Email: "ada@x.com", Name: "Ada"}),
	}}, nil)

	u, err := newRepo(api).GetByEmail(context.Background(), "ada@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, "Ada", u.Name)
}

func TestGetByEmail_NoItems_ReturnsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := newRepo(api).GetByEmail(context.Background(), "nobody@x.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// --- Update ---

func TestUpdate_MissingUser_ReturnsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, condFailed())

	err := newRepo(api).RecordLogin(context.Background(), "ghost", time.Now())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSetResetToken_WritesTokenAndExpiryTogether(t *testing.T) {
	api := &mockAPI{}
	exp := time.Unix(1_700_000_000, 0)
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		var tok, expAttr bool
		for _, name := range in.ExpressionAttributeNames {
			tok = tok || name == fieldResetPasswordToken
			expAttr = expAttr || name == fieldResetPasswordTokenExpiresAt
		}
		return tok && expAttr
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	require.NoError(t, newRepo(api).SetResetToken(context.Background(), "u1", "abc", exp))
	api.AssertExpectations(t)
}

// --- token consumption ---

func TestConsumeVerificationToken_HappyPath(t *testing.T) {
	api := &mockAPI{}
	now := time.Unix(1_700_000_000, 0)
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == indexVerificationToken && in.FilterExpression != nil
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		userItem(t, domain.User{UserID: "u1", VerificationToken: "123456", VerificationTokenExpiresAt: now.Unix() + 60}),
	}}, nil)
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "#tok = :tok AND #exp > :now" &&
			in.ReturnValues == types.ReturnValueAllNew
	})).Return(&dynamodb.UpdateItemOutput{Attributes: userItem(t, domain.User{UserID: "u1", IsVerified: true})}, nil)

	u, err := newRepo(api).ConsumeVerificationToken(context.Background(), "123456", now)
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
	assert.Empty(t, u.VerificationToken)
	assert.Zero(t, u.VerificationTokenExpiresAt)
}

func TestConsumeVerificationToken_NoCandidates_ReturnsInvalidToken(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := newRepo(api).ConsumeVerificationToken(context.Background(), "000000", time.Now())
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
	api.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything)
}

func TestConsumeVerificationToken_LostRace_ReturnsInvalidToken(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		userItem(t, domain.User{UserID: "u1"}),
	}}, nil)
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, condFailed())

	_, err := newRepo(api).ConsumeVerificationToken(context.Background(), "123456", time.Now())
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestConsumeVerificationToken_TriesNextCandidate(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		userItem(t, domain.User{UserID: "u1"}),
		userItem(t, domain.User{UserID: "u2"}),
	}}, nil)
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return in.Key[fieldUserID].(*types.AttributeValueMemberS).Value == "u1"
	})).Return(nil, condFailed()).Once()
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return in.Key[fieldUserID].(*types.AttributeValueMemberS).Value == "u2"
	})).Return(&dynamodb.UpdateItemOutput{Attributes: userItem(t, domain.User{UserID: "u2", IsVerified: true})}, nil).Once()

	u, err := newRepo(api).ConsumeVerificationToken(context.Background(), "123456", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "u2", u.UserID)
}

func TestConsumeResetToken_StoreFailurePropagates(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := newRepo(api).ConsumeResetToken(context.Background(), "abc", time.Now(), "hash")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestConsumeResetToken_EmptyToken(t *testing.T) {
	api := &mockAPI{}
	_, err := newRepo(api).ConsumeResetToken(context.Background(), "", time.Now(), "hash")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
	api.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

// --- Bootstrap ---

func TestBootstrap_ExistingTablesAreFine(t *testing.T) {
	api := &mockAPI{}
	api.On("CreateTable", mock.Anything, mock.Anything).Return(nil, &types.ResourceInUseException{Message: aws.String("exists")})

	err := Bootstrap(context.Background(), api, config.DynamoTables{Users: "users", UserEmails: "user_emails"})
	require.NoError(t, err)
	api.AssertNumberOfCalls(t, "CreateTable", 2)
}

func TestBootstrap_OtherErrorsSurface(t *testing.T) {
	api := &mockAPI{}
	api.On("CreateTable", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	err := Bootstrap(context.Background(), api, config.DynamoTables{Users: "users", UserEmails: "user_emails"})
	assert.ErrorContains(t, err, "access denied")
}
