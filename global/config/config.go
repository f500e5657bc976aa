package config

import (
	"os"
	"strings"
	"time"

	"CampusLink/logger"
	ids "CampusLink/tools/ids"
)

// AppConfig is the node-level configuration of the realtime coordinator.
// All presence/room state is held in this one process (documented design
// limitation); NodeID only namespaces Redis keys and snowflake ids.
type AppConfig struct {
	NodeID string
	Port   int

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsServers []string

	PingInterval time.Duration
	AuthTimeout  time.Duration
}

var Global = AppConfig{
	NodeID:        "realtime_01",
	Port:          8080,
	MongoURI:      "mongodb://localhost:27017",
	MongoDatabase: "campuslink",
	RedisAddr:     "127.0.0.1:6379",
	RedisDB:       0,
	NatsServers:   []string{"nats://127.0.0.1:4222"},
	PingInterval:  25 * time.Second,
	AuthTimeout:   30 * time.Second,
}

func init() {
	if v := os.Getenv("CL_MONGO_URI"); v != "" {
		Global.MongoURI = v
	}
	if v := os.Getenv("CL_REDIS_ADDR"); v != "" {
		Global.RedisAddr = v
	}
	if v := os.Getenv("CL_REDIS_PASSWORD"); v != "" {
		Global.RedisPassword = v
	}
	if v := os.Getenv("CL_NATS_SERVERS"); v != "" {
		Global.NatsServers = strings.Split(v, ",")
	}
	if v := os.Getenv("CL_NODE_ID"); v != "" {
		Global.NodeID = v
	}
}

func GetJwtSecret() []byte {
	if v := os.Getenv("CL_JWT_SECRET"); v != "" {
		return []byte(v)
	}
	return []byte("mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=")
}

func ConfigIds() {
	logger.Infof("configuring id generator node=%s", Global.NodeID)
	ids.SetNodeID(100)
}
