package cmd

import (
	"tunestream/logger"
	"tunestream/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动流媒体服务器",
	Long:  `启动 HTTP 服务器，通过 /stream/{id} 提供支持 Range 请求的音频流`,
	RunE:  runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	logger.Info("starting tunestream server...")
	return server.Start(cmd.Context(), cfg)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
