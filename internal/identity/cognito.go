package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"go.uber.org/zap"
)

// CognitoAPI is the subset of the Cognito client used here.
type CognitoAPI interface {
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, in *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

// ProfileLookup resolves the user behind an ID token.
type ProfileLookup func(ctx context.Context, idToken string) (*domain.User, error)

// CognitoProvider signs in with USER_PASSWORD_AUTH and uses the ID token as
// the bearer token for every backend.
type CognitoProvider struct {
	api      CognitoAPI
	clientID string
	users    UserService
	profile  ProfileLookup
	logger   *logger.Logger
}

// NewCognitoClient builds a Cognito client from the default AWS credential chain.
func NewCognitoClient(ctx context.Context, region string) (*cip.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cip.NewFromConfig(cfg), nil
}

func NewCognitoProvider(api CognitoAPI, clientID string, users UserService, profile ProfileLookup, log *logger.Logger) *CognitoProvider {
	return &CognitoProvider{
		api:      api,
		clientID: clientID,
		users:    users,
		profile:  profile,
		logger:   log.Named("identity.cognito"),
	}
}

func (p *CognitoProvider) Name() string { return "cognito" }

func (p *CognitoProvider) SignIn(ctx context.Context, username, password string) (*Result, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		var notFound *types.UserNotFoundException
		if errors.As(err, &notAuthorized) || errors.As(err, &notFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("cognito sign-in failed: %w", err)
	}
	if out.AuthenticationResult == nil || aws.ToString(out.AuthenticationResult.IdToken) == "" {
		if out.ChallengeName != "" {
			return nil, fmt.Errorf("cognito sign-in requires unsupported challenge %s", out.ChallengeName)
		}
		return nil, errors.New("cognito sign-in returned no id token")
	}

	idToken := aws.ToString(out.AuthenticationResult.IdToken)
	user, err := p.profile(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user for id token: %w", err)
	}
	return &Result{
		User:        *user,
		Token:       idToken,
		AccessToken: aws.ToString(out.AuthenticationResult.AccessToken),
	}, nil
}

func (p *CognitoProvider) Register(ctx context.Context, req apiclient.RegisterRequest) (*Result, error) {
	return register(ctx, p.users, req)
}

// SignOut revokes the Cognito tokens. Sessions created without an access
// token (e.g. via registration) have nothing to revoke.
func (p *CognitoProvider) SignOut(ctx context.Context, sess *domain.Session) error {
	if sess == nil || sess.AccessToken == "" {
		return nil
	}
	if _, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(sess.AccessToken)}); err != nil {
		p.logger.Warn("cognito global sign-out failed", zap.Error(err))
		return fmt.Errorf("cognito sign-out failed: %w", err)
	}
	return nil
}
