package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"CampusLink/global/config"
	"CampusLink/logger"
	"CampusLink/middleware"
	"CampusLink/module/community/api"
	"CampusLink/module/community/store"
	"CampusLink/service/mgo"
	"CampusLink/service/natsx"
	"CampusLink/service/realtime"
	"CampusLink/service/storage"
	redis2 "CampusLink/service/storage/redis"
	"CampusLink/tools/security"

	"github.com/gin-gonic/gin"
)

// jwtVerifier adapts the token helper to the coordinator's Verifier port.
type jwtVerifier struct {
	opts security.Options
}

func (v jwtVerifier) Verify(token string) (*security.Identity, error) {
	return security.Verify(v.opts, token)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.ConfigIds()

	if err := redis2.InitRedis(redis2.Config{
		Addr:     config.Global.RedisAddr,
		Password: config.Global.RedisPassword,
		DB:       config.Global.RedisDB,
	}); err != nil {
		logger.Errorf("redis init: %v", err)
		return
	}
	defer func() { _ = redis2.CloseRedis() }()

	if err := mgo.Init(ctx, mgo.Config{
		URI:      config.Global.MongoURI,
		Database: config.Global.MongoDatabase,
	}); err != nil {
		logger.Errorf("mongo init: %v", err)
		return
	}
	defer func() { _ = mgo.Close(context.Background()) }()

	db := mgo.GetDB()
	chats := store.NewChatStore(db)
	msgs := store.NewMessageStore(db)
	members := store.NewMembershipStore(db)
	presence := storage.NewPresenceStore()
	secOpts := security.DefaultOptions(config.GetJwtSecret())

	srv := realtime.NewServer(realtime.Options{
		NodeID:       config.Global.NodeID,
		PingInterval: config.Global.PingInterval,
		AuthTimeout:  config.Global.AuthTimeout,
	}, chats, msgs, members, presence, jwtVerifier{opts: secOpts})
	defer srv.Close()

	nc, err := natsx.NewNatsxClient(natsx.NatsxConfig{
		Servers: config.Global.NatsServers,
		Name:    "campuslink-" + config.Global.NodeID,
	})
	if err != nil {
		// notify ingress is an enrichment; chat works without the broker
		logger.Warnf("nats connect: %v (notify ingress disabled)", err)
	} else {
		defer func() { _ = nc.Close() }()
		if err := srv.BindNotifyIngress(nc); err != nil {
			logger.Warnf("nats subscribe: %v", err)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Origin())
	r.GET("/ws", srv.HandleWS)

	authed := r.Group("/", middleware.Auth(secOpts))
	api.NewHistoryAPI(chats, msgs).Register(authed)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Global.Port),
		Handler: r,
	}
	go func() {
		logger.Infof("realtime coordinator %s listening on %s", config.Global.NodeID, httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http serve: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
}
