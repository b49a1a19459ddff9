//go:build !windows

package notifications

import "fmt"

// ToastNotifier pushes a Windows toast notification. On other platforms
// ShowToast returns an error the Manager logs and otherwise ignores.
type ToastNotifier struct {
	appID        string
	dashboardURL string
}

// NewToastNotifier creates a toast notifier bound to the given app id and
// dashboard URL, defaulting both when empty.
func NewToastNotifier(appID, dashboardURL string) *ToastNotifier {
	if appID == "" {
		appID = "workshopd"
	}
	if dashboardURL == "" {
		dashboardURL = "http://localhost:8080"
	}
	return &ToastNotifier{appID: appID, dashboardURL: dashboardURL}
}

func (t *ToastNotifier) ShowToast(title, message string) error {
	return fmt.Errorf("toast notifications only supported on windows")
}
