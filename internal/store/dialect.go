package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Dialect covers the SQL differences between the supported drivers.
type Dialect struct {
	Driver      string
	Placeholder func(n int) string
	quote       func(part string) string
}

var (
	SQLServer = Dialect{
		Driver:      "sqlserver",
		Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		quote:       func(p string) string { return "[" + p + "]" },
	}
	SQLite = Dialect{
		Driver:      "sqlite",
		Placeholder: func(int) string { return "?" },
		quote:       func(p string) string { return `"` + p + `"` },
	}
)

var (
	identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#@]*$`)

	errIdentifier = errors.New("store: invalid identifier")
)

// QuoteIdent validates a possibly schema-qualified name such as dbo.Tickets
// and quotes each part.
func (d Dialect) QuoteIdent(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 3 {
		return "", fmt.Errorf("%w: %q", errIdentifier, name)
	}
	for i, p := range parts {
		if !identPart.MatchString(p) {
			return "", fmt.Errorf("%w: %q", errIdentifier, name)
		}
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, "."), nil
}

// DialectFor returns the dialect registered under a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case SQLServer.Driver:
		return SQLServer, nil
	case SQLite.Driver:
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("store: unsupported driver %q", driver)
}
