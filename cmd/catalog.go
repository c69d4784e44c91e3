package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"tunestream/cache"
	"tunestream/db"
	"tunestream/logger"
	"tunestream/model"
	"tunestream/repository"
	"tunestream/storage"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	catalogFile   string
	catalogTitle  string
	catalogArtist string
	catalogOwner  int64
	catalogMime   string
	catalogLimit  int
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "管理曲目目录",
	Long:  `登记、列出和删除可通过 /stream/{id} 访问的曲目。`,
}

var catalogAddCmd = &cobra.Command{
	Use:   "add",
	Short: "登记已上传的音频对象",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		backend, err := storage.New(ctx, cfg)
		if err != nil {
			return err
		}
		info, err := backend.Stat(ctx, catalogFile)
		if err != nil {
			return fmt.Errorf("对象 %q 不可用: %w", catalogFile, err)
		}

		return withCatalog(func(repo repository.TrackRepository) error {
			track := &model.Track{
				Title:      catalogTitle,
				Artist:     catalogArtist,
				OwnerID:    catalogOwner,
				StorageKey: catalogFile,
				MimeType:   catalogMime,
			}
			if err := repo.CreateTrack(ctx, track); err != nil {
				return err
			}
			logger.Info("track registered",
				logger.String("id", track.ID),
				logger.String("key", track.StorageKey),
				logger.Int64("size", info.Size))
			fmt.Println(track.ID)
			return nil
		})
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出曲目",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(func(repo repository.TrackRepository) error {
			tracks, err := repo.ListTracks(cmd.Context(), catalogLimit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tARTIST\tKEY\tMIME")
			for _, t := range tracks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Artist, t.StorageKey, t.MimeType)
			}
			return w.Flush()
		})
	},
}

var catalogRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "删除曲目（不删除存储对象）",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		err := withCatalog(func(repo repository.TrackRepository) error {
			return repo.DeleteTrack(cmd.Context(), id)
		})
		if err != nil {
			return err
		}
		dropCachedMetadata(cmd.Context(), id)
		fmt.Printf("已删除 %s\n", id)
		return nil
	},
}

func withCatalog(fn func(repository.TrackRepository) error) error {
	gdb, err := openCatalog()
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	return fn(repository.NewGormTrackRepository(gdb))
}

func openCatalog() (*gorm.DB, error) {
	gdb, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		db.Close(gdb)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return gdb, nil
}

// dropCachedMetadata removes a deleted track from the metadata cache so the
// server stops resolving it before the TTL runs out.
func dropCachedMetadata(ctx context.Context, id string) {
	if !cfg.CacheEnabled() {
		return
	}
	client, err := cache.ConnectRedis(cfg)
	if err != nil {
		logger.Warn("skip cache invalidation", logger.ErrorField(err))
		return
	}
	defer client.Close()
	if err := cache.NewMetadataCache(client, cfg.MetadataCacheTTL).Invalidate(ctx, id); err != nil {
		logger.Warn("cache invalidation failed", logger.String("id", id), logger.ErrorField(err))
	}
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogAddCmd, catalogListCmd, catalogRmCmd)

	catalogAddCmd.Flags().StringVar(&catalogFile, "file", "", "存储键（相对于 MEDIA_DIR 或存储桶）")
	catalogAddCmd.Flags().StringVar(&catalogTitle, "title", "", "曲目标题")
	catalogAddCmd.Flags().StringVar(&catalogArtist, "artist", "", "艺术家")
	catalogAddCmd.Flags().Int64Var(&catalogOwner, "owner", 0, "所属用户 ID")
	catalogAddCmd.Flags().StringVar(&catalogMime, "mime", "", "声明的 MIME 类型，留空则自动检测")
	_ = catalogAddCmd.MarkFlagRequired("file")
	_ = catalogAddCmd.MarkFlagRequired("title")

	catalogListCmd.Flags().IntVar(&catalogLimit, "limit", 50, "最多显示条数")
}
