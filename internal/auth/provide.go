package auth

import (
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"go.uber.org/zap"

	"ticket-sync/internal/config"
)

// NewProvider picks the confidential client when a client secret is
// configured and the interactive public client otherwise. Both share the
// file-backed token cache.
func NewProvider(c config.Auth, logger *zap.Logger) (Provider, error) {
	var tc cache.ExportReplace
	if c.CachePath != "" {
		tc = NewFileCache(c.CachePath, logger)
	}
	if c.ClientSecret != "" {
		p, err := NewConfidentialProvider(c.ClientID, c.Authority(), c.ClientSecret, tc)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	p, err := NewPublicProvider(c.ClientID, c.Authority(), c.RedirectURI, tc)
	if err != nil {
		return nil, err
	}
	return p, nil
}
