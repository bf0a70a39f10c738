package domain

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleStudent Role = "STUDENT"
	RoleDonor   Role = "DONOR"
)

type NotificationType string

const (
	NotificationTypeMessage     NotificationType = "MESSAGE"
	NotificationTypeDonation    NotificationType = "DONATION"
	NotificationTypeApplication NotificationType = "APPLICATION"
	NotificationTypeSystem      NotificationType = "SYSTEM"
)
