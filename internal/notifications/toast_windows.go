//go:build windows

package notifications

import (
	"github.com/go-toast/toast"
)

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
	notification := toast.Notification{
		AppID:   t.appID,
		Title:   title,
		Message: message,
		Audio:   toast.IM,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Open Dashboard", Arguments: t.dashboardURL},
		},
	}
	return notification.Push()
}
