package sharetoken

import (
	"fmt"
	"net/url"
	"path"
)

// SecretQueryParam is the query parameter carrying the secret in a share URL
const SecretQueryParam = "share_token"

// buildShareURL creates the preview URL embedding the secret.
// Projects published with WWW are served at the root of the preview domain,
// all others under /{project}/.
func buildShareURL(previewBaseURL string, scope Scope, secret string) (string, error) {
	// Parse the base URL to properly handle existing paths
	u, err := url.Parse(previewBaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing preview base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("preview base URL %q must be absolute", previewBaseURL)
	}

	if scope.WWW {
		u.Path = path.Join("/", u.Path) + "/"
	} else {
		u.Path = path.Join("/", u.Path, scope.ProjectName) + "/"
	}
	if u.Path == "//" {
		u.Path = "/"
	}

	q := u.Query()
	q.Set(SecretQueryParam, secret)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
