package worker

import (
	"github.com/spec-kit/workflow-service/internal/service"
)

// StartNotificationWorker registers the event relay handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
