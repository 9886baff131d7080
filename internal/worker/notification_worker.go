package worker

import (
	"github.com/spec-kit/complaint-service/internal/notification"
)

// StartNotificationWorker subscribes the redis fan-out to complaint events.
func StartNotificationWorker(notificationService *notification.Service) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
