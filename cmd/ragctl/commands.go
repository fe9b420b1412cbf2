package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aihub/support-portal/app/bootstrap"
	"github.com/aihub/support-portal/internal/config"
	"github.com/aihub/support-portal/internal/database"
	"github.com/aihub/support-portal/internal/di"
	"github.com/aihub/support-portal/internal/ingest"
	"github.com/aihub/support-portal/internal/kafka"
	"github.com/aihub/support-portal/internal/logger"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
)

// session 一次命令执行所需的容器与资源
type session struct {
	cfg       *config.Config
	container *dig.Container
	resources *di.Resources
}

func openSession() (*session, error) {
	_, cfg, err := bootstrap.Load()
	if err != nil {
		return nil, err
	}
	// 命令行不暴露/metrics，指标注册到独立的注册表
	container, err := di.Build(cfg, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, container: container}
	if err := container.Invoke(func(res *di.Resources) { s.resources = res }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	if s.resources != nil {
		_ = s.resources.Close()
	}
	logger.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func createAskCommand() *cobra.Command {
	var tenant string
	var topK int
	var timeout time.Duration
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			var engine *rag.Engine
			if err := s.container.Invoke(func(e *rag.Engine) { engine = e }); err != nil {
				return err
			}
			if topK > 0 {
				engine.SetTopK(topK)
			}

			ctx, cancel := signalContext()
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
			defer cancelTimeout()

			var tenantID *string
			if t := strings.TrimSpace(tenant); t != "" {
				tenantID = &t
			}

			result, runErr := engine.Run(ctx, strings.Join(args, " "), tenantID)
			out := cmd.OutOrStdout()
			if runErr != nil {
				fmt.Fprintln(out, result.Answer)
				return runErr
			}
			fmt.Fprintln(out, result.Reply())
			if showSources {
				for _, src := range result.Sources {
					fmt.Fprintf(out, "  [%s] %s\n", src.ID, src.Title)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Business id; empty searches the global corpus only")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Override rag.top_k for this question")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Overall time limit for the question")
	cmd.Flags().BoolVar(&showSources, "sources", false, "Print chunk ids of the cited sources")
	return cmd
}

func createSeedCommand() *cobra.Command {
	var file, dir, objectPrefix string
	var tenant, urlBase string
	var migrate bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Chunk, embed and store knowledge articles",
		Long: "Read articles from a YAML seed file, a local directory of documents (txt, md, pdf, docx, xlsx) " +
			"or an object storage prefix, split long content into overlapping chunks, embed each chunk with " +
			"the configured provider and upsert the rows into the knowledge chunk table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := signalContext()
			defer cancel()

			opts := ingest.SourceOptions{URLBase: urlBase, Logger: logger.GetLogger()}
			if t := strings.TrimSpace(tenant); t != "" {
				opts.Tenant = &t
			}
			articles, err := loadArticles(ctx, s.cfg, file, dir, objectPrefix, opts)
			if err != nil {
				return err
			}
			if len(articles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no articles found")
				return nil
			}

			if migrate {
				if err := s.container.Invoke(func(st *di.Storage) error {
					return migrateStorage(st, s.cfg.Database.MigrationsPath)
				}); err != nil {
					return err
				}
			}

			var ingester *ingest.Ingester
			if err := s.container.Invoke(func(in *ingest.Ingester) { ingester = in }); err != nil {
				return err
			}

			stats, err := ingester.Ingest(ctx, articles)
			fmt.Fprintf(cmd.OutOrStdout(), "articles=%d chunks=%d skipped=%d\n", stats.Articles, stats.Chunks, stats.Skipped)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file with an articles list")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of documents to ingest")
	cmd.Flags().StringVar(&objectPrefix, "object-prefix", "", "Ingest documents under this prefix of rag.ingest.object_storage.bucket")
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Business id for documents from --dir or --object-prefix; empty stores global knowledge")
	cmd.Flags().StringVar(&urlBase, "url-base", "", "Public URL prefix for document sources")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before seeding")
	cmd.MarkFlagsOneRequired("file", "dir", "object-prefix")
	cmd.MarkFlagsMutuallyExclusive("file", "dir", "object-prefix")
	return cmd
}

func loadArticles(ctx context.Context, cfg *config.Config, file, dir, objectPrefix string, opts ingest.SourceOptions) ([]ingest.Article, error) {
	if file != "" {
		return ingest.LoadArticlesFile(file)
	}

	if err := ingest.SetDocumentLicense(cfg.RAG.Ingest.DocumentLicenseKey); err != nil {
		return nil, err
	}
	docs := ingest.NewDocuments()

	var src ingest.Source
	if dir != "" {
		src = ingest.NewDirSource(dir, docs, opts)
	} else {
		store, err := ingest.NewMinioStore(cfg.RAG.Ingest.ObjectStorage)
		if err != nil {
			return nil, err
		}
		src = ingest.NewObjectSource(store, objectPrefix, docs, opts)
	}
	return src.Articles(ctx)
}

func migrateStorage(st *di.Storage, path string) error {
	if st.SQL == nil {
		return fmt.Errorf("corpus backend %q has no relational storage to migrate", st.Backend)
	}
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	mm, err := database.NewMigrationManager(st.SQL, st.Driver, path, log)
	if err != nil {
		return err
	}
	return mm.Up()
}

func createEventsCommand() *cobra.Command {
	var groupID string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail answer events from Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := bootstrap.Load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if groupID == "" {
				groupID = cfg.Kafka.GroupID
			}
			consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, groupID, []string{cfg.Kafka.Topic}, logger.GetLogger())
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, cancel := signalContext()
			defer cancel()

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			err = consumer.Run(ctx, func(ctx context.Context, event kafka.AnswerEvent) error {
				return enc.Encode(event)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&groupID, "group", "g", "", "Consumer group (default kafka.group_id)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent printed events")
	return cmd
}
