package login

import (
	"fmt"

	"github.com/skratchdot/open-golang/open"
)

// Navigator presents an authorization URL to the user. The production
// implementation opens the system browser; tests inject a fake that drives
// the callback server directly.
type Navigator interface {
	// Open loads the URL in a user-visible surface. It returns once the
	// surface has been launched, not when the user finishes interacting.
	Open(url string) error
}

// BrowserNavigator opens URLs in the user's default web browser.
type BrowserNavigator struct{}

// Open implements Navigator.
func (BrowserNavigator) Open(url string) error {
	if err := open.Start(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
