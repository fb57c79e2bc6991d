package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/config"
	"github.com/parththirwani/ChatterStack-sub001/pkg/tracing"
	"github.com/parththirwani/ChatterStack-sub001/repository/xormimplement"
	"github.com/parththirwani/ChatterStack-sub001/router"
	"github.com/parththirwani/ChatterStack-sub001/service/factory"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout  = 15 * time.Second
	bootstrapTimeout = 30 * time.Second
)

type bootstrapper interface {
	Bootstrap(ctx context.Context) error
}

// bootstrapOnStart 启动时建表建集合，失败只告警，服务照常启动
func bootstrapOnStart(ctx context.Context, b bootstrapper) {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()
	if err := b.Bootstrap(ctx); err != nil {
		logrus.WithError(err).Warn("bootstrap on start failed, run `bootstrap` once the dependencies are up")
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownTracing, err := tracing.Init("chatterstack", config.GetInstance().GetBool(config.AppTraceStdout))
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logrus.Warnf("shutdown tracing: %v", err)
		}
	}()

	if err := factory.Init(); err != nil {
		return err
	}
	services := factory.GetServiceFactory()
	defer services.Close()
	bootstrapOnStart(ctx, services)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	services.Start(runCtx)

	addr := config.GetInstance().GetStringOrDefault(config.AppHost, ":8080")
	server := &http.Server{Addr: addr, Handler: router.GetInstance()}
	serveErr := make(chan error, 1)
	go func() {
		logrus.Infof("listening at %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	if err := waitStop(serveErr); err != nil {
		return fmt.Errorf("failed to ListenAndServe at %v: %w", addr, err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}

// waitStop 阻塞到收到退出信号或服务自身出错
func waitStop(serveErr <-chan error) error {
	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(sc)

	select {
	case sig := <-sc:
		logrus.Infof("exit: signal=<%d>", sig)
		return nil
	case err, ok := <-serveErr:
		if !ok {
			return nil
		}
		return err
	}
}

func newBootstrapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "create tables, vector collection and payload indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := factory.Init(); err != nil {
				return err
			}
			services := factory.GetServiceFactory()
			defer services.Close()
			return services.Bootstrap(cmd.Context())
		},
	}
}

func newProfileCommand() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "user profile maintenance",
	}

	var userID string
	infer := &cobra.Command{
		Use:   "infer",
		Short: "rebuild a user profile from message history",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 只依赖关系库，不需要 embedding 和向量库
			repositoryFactory := xormimplement.GetRepositoryFactoryInstance()
			profile, merr := factory.NewProfileEngine(repositoryFactory).InferProfile(cmd.Context(), userID)
			if merr != nil {
				return merr
			}
			logrus.WithField("user_id", userID).Infof("profile inferred: level=%s style=%s messages=%d version=%d",
				profile.TechnicalLevel, profile.ExplanationStyle, profile.MessageCount, profile.Version)
			return nil
		},
	}
	infer.Flags().StringVar(&userID, "user", "", "user id")
	_ = infer.MarkFlagRequired("user")
	profileCmd.AddCommand(infer)
	return profileCmd
}
