package main

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/parththirwani/ChatterStack-sub001/pkg/projectlog"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	defer func() {
		if serviceErr := recover(); serviceErr != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			log.Println("The service exits abnormally, error message:【", serviceErr, "】")
			log.Println("Stack info: ")
			fmt.Printf("==> %s\n", string(buf[:n]))
			os.Exit(1)
		}
	}()

	projectlog.Init()

	if err := newRootCommand().Execute(); err != nil {
		logrus.Errorf("command failed: %v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCommand()
	root := &cobra.Command{
		Use:          "chatterstack",
		Short:        "conversational memory and retrieval engine",
		SilenceUsage: true,
		// 不带子命令时直接启动服务
		RunE: serve.RunE,
	}
	root.AddCommand(serve, newBootstrapCommand(), newProfileCommand())
	return root
}
