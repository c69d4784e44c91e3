package cmd

import (
	"fmt"

	"tunestream/cache"

	"github.com/spf13/cobra"
)

var redisFlush bool

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功；使用 --flush 清除元数据缓存。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Redis配置: %s, DB: %d\n", cfg.RedisAddr(), cfg.RedisDB)

		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer client.Close()
		fmt.Println("Redis连接成功！")

		if !redisFlush {
			return nil
		}
		n, err := cache.FlushPattern(cmd.Context(), client, cache.KeyPattern)
		if err != nil {
			return fmt.Errorf("清除缓存失败: %w", err)
		}
		fmt.Printf("已删除 %d 个缓存键 (%s)\n", n, cache.KeyPattern)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
	redisCmd.Flags().BoolVar(&redisFlush, "flush", false, "删除所有元数据缓存键")
}
