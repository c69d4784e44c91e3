package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"tunestream/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看MinIO存储桶中的音频对象，支持按前缀列出文件、递归显示目录结构、查看统计信息。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		backend, err := storage.NewMinioBackend(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		if minioStats {
			stats, err := backend.Stats(ctx, minioPrefix)
			if err != nil {
				return fmt.Errorf("获取存储桶统计信息失败: %w", err)
			}
			printBucketStats(backend.Bucket(), minioPrefix, stats)
			return nil
		}

		objects, err := backend.List(ctx, minioPrefix, minioRecursive)
		if err != nil {
			return err
		}
		printObjects(objects)
		return nil
	},
}

func printObjects(objects []storage.ObjectInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tTYPE\tMODIFIED")
	for _, obj := range objects {
		contentType := obj.ContentType
		if contentType == "" {
			contentType = storage.ContentTypeByKey(obj.Key)
		}
		modified := "-"
		if !obj.LastModified.IsZero() {
			modified = obj.LastModified.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", obj.Key, storage.FormatSize(obj.Size), contentType, modified)
	}
	w.Flush()
	fmt.Printf("\n共 %d 个对象\n", len(objects))
}

func printBucketStats(bucket, prefix string, stats *storage.BucketStats) {
	fmt.Printf("\n存储桶: %s", bucket)
	if prefix != "" {
		fmt.Printf(" (前缀: %s)", prefix)
	}
	fmt.Println()
	fmt.Printf("对象总数: %d\n", stats.TotalObjects)
	fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Printf("最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	}

	exts := make([]string, 0, len(stats.ByExtension))
	for ext := range stats.ByExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	fmt.Println("按扩展名:")
	for _, ext := range exts {
		fmt.Printf("  %-8s %d\n", ext, stats.ByExtension[ext])
	}
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "递归显示目录结构")

	minioCmd.Example = `  # 列出根目录
  tunestream minio

  # 递归列出某个前缀下的文件
  tunestream minio -r -p "music/"

  # 显示存储桶统计信息
  tunestream minio -s -p "music/"`
}
