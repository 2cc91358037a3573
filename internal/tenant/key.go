package tenant

import "strings"

// KeyFromEmail derives a tenant database key from the local part of an
// email address. The result is lowercased and restricted to characters
// valid in an unquoted Postgres identifier; anything else becomes an
// underscore. A leading digit gets a "t_" prefix.
func KeyFromEmail(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i >= 0 {
		local = email[:i]
	}
	local = strings.ToLower(local)

	var b strings.Builder
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	key := b.String()
	if key == "" {
		return ""
	}
	if key[0] >= '0' && key[0] <= '9' {
		key = "t_" + key
	}
	return key
}
