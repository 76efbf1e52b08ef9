package database

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Connection definition backend connection setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// MongoDB definition mongo db handle
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}
