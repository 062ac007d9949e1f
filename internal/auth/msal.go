package auth

import (
	"context"
	"fmt"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
)

// PublicProvider signs a user in through an MSAL public client. Cached
// accounts are keyed by client ID and authority inside the MSAL cache.
type PublicProvider struct {
	client      public.Client
	redirectURI string
}

func NewPublicProvider(clientID, authority, redirectURI string, c cache.ExportReplace) (*PublicProvider, error) {
	opts := []public.Option{public.WithAuthority(authority)}
	if c != nil {
		opts = append(opts, public.WithCache(c))
	}
	client, err := public.New(clientID, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: public client: %w", err)
	}
	return &PublicProvider{client: client, redirectURI: redirectURI}, nil
}

func (p *PublicProvider) TokenSilent(ctx context.Context, scopes []string) (string, error) {
	accounts, err := p.client.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("auth: list cached accounts: %w", err)
	}
	if len(accounts) == 0 {
		return "", ErrNoCachedSession
	}
	res, err := p.client.AcquireTokenSilent(ctx, scopes, public.WithSilentAccount(accounts[0]))
	if err != nil {
		return "", fmt.Errorf("auth: silent: %w", err)
	}
	return res.AccessToken, nil
}

func (p *PublicProvider) TokenInteractive(ctx context.Context, scopes []string) (string, error) {
	var opts []public.AcquireInteractiveOption
	if p.redirectURI != "" {
		opts = append(opts, public.WithRedirectURI(p.redirectURI))
	}
	res, err := p.client.AcquireTokenInteractive(ctx, scopes, opts...)
	if err != nil {
		return "", fmt.Errorf("auth: interactive: %w", err)
	}
	return res.AccessToken, nil
}

// ConfidentialProvider authenticates the application itself with a client
// secret, for runs where nobody is around to consent.
type ConfidentialProvider struct {
	client confidential.Client
}

func NewConfidentialProvider(clientID, authority, secret string, c cache.ExportReplace) (*ConfidentialProvider, error) {
	cred, err := confidential.NewCredFromSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("auth: client secret: %w", err)
	}
	var opts []confidential.Option
	if c != nil {
		opts = append(opts, confidential.WithCache(c))
	}
	client, err := confidential.New(authority, clientID, cred, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: confidential client: %w", err)
	}
	return &ConfidentialProvider{client: client}, nil
}

func (p *ConfidentialProvider) TokenSilent(ctx context.Context, scopes []string) (string, error) {
	res, err := p.client.AcquireTokenSilent(ctx, scopes)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoCachedSession, err)
	}
	return res.AccessToken, nil
}

// TokenInteractive runs the client credentials grant.
func (p *ConfidentialProvider) TokenInteractive(ctx context.Context, scopes []string) (string, error) {
	res, err := p.client.AcquireTokenByCredential(ctx, scopes)
	if err != nil {
		return "", fmt.Errorf("auth: client credentials: %w", err)
	}
	return res.AccessToken, nil
}
