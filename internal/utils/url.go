package utils

import (
	"fmt"
	"net/url"
)

// GetWalletPageUrl returns the address of the wallet bridge page. publicURL,
// when set, replaces the local address.
func GetWalletPageUrl(publicURL string, serverPort int) (string, error) {
	if publicURL != "" {
		parsedUrl, err := url.Parse(publicURL)
		if err != nil {
			return "", fmt.Errorf("invalid public url: %w", err)
		}
		if parsedUrl.Scheme == "" || parsedUrl.Host == "" {
			return "", fmt.Errorf("invalid public url: %q", publicURL)
		}
		parsedUrl.Path = "/wallet"
		return parsedUrl.String(), nil
	}

	return fmt.Sprintf("http://localhost:%d/wallet", serverPort), nil
}
