package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/reanahub/reana-workflow-controller/cmd/controller/handlers"
	cconf "github.com/reanahub/reana-workflow-controller/pkg/configs/controller"
	kpool "github.com/reanahub/reana-workflow-controller/pkg/conn/db/postgres/pool"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster"
	runpg "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db/postgres"
	runk8s "github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s"
	runmanager "github.com/reanahub/reana-workflow-controller/pkg/domain/run/manager"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/schema"
	sessionpg "github.com/reanahub/reana-workflow-controller/pkg/domain/session/db/postgres"
	sessionmanager "github.com/reanahub/reana-workflow-controller/pkg/domain/session/manager"
	workspacepg "github.com/reanahub/reana-workflow-controller/pkg/domain/workspace/db/postgres"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/echoutil"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/filewatch"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/kubeutil"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/retry"
)

func main() {

	pconfig := flag.String(
		"config", os.Getenv("REANA_CONTROLLER_CONFIG"), "path to config file",
	)
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	kubeconfig := flag.String("kubeconfig", "", "path to kubeconfig file (out-of-cluster use)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	conf, err := cconf.LoadControllerConfig(*pconfig)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}

	// quit (to be restarted) when the config file changes.
	{
		wctx, wcancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			log.Fatalf("can not watch configuration: %s", err)
		}
		defer wcancel()
		ctx = wctx
	}

	pool, err := kpool.New(ctx, conf.Cluster().Database())
	if err != nil {
		log.Fatalf("can not connect to database: %s", err)
	}
	if err := schema.Ensure(ctx, pool); err != nil {
		log.Fatalf("can not prepare database schema: %s", err)
	}

	clientset, err := kubeutil.ConnectToK8s(*kubeconfig)
	if err != nil {
		log.Fatalf("can not connect to kubernetes: %s", err)
	}
	clus := cluster.AttachCluster(
		cluster.WrapK8sClient(clientset),
		conf.Cluster().Namespace(),
		conf.Cluster().Domain(),
	)

	// the shared workspace claim must exist and be bound before
	// anything can be scheduled onto it.
	{
		bctx, bcancel := context.WithTimeout(ctx, 30*time.Second)
		defer bcancel()
		result := <-clus.GetPVC(
			bctx, retry.Static(time.Second),
			conf.Cluster().Workspaces().ClaimName(),
		)
		if result.Err != nil {
			log.Fatalf(
				"workspace claim %s is not available: %s",
				conf.Cluster().Workspaces().ClaimName(), result.Err,
			)
		}
	}

	signKey, err := os.ReadFile(conf.Cluster().Session().SignKeyFile())
	if err != nil {
		log.Fatalf("can not read session sign key: %s", err)
	}

	runDB := runpg.New(pool)
	sessionDB := sessionpg.New(pool)
	defaultQuota := conf.Cluster().Workspaces().DefaultQuota()
	accountant := workspacepg.New(
		pool, defaultQuota.Value(),
	)

	sessions := sessionmanager.New(sessionDB, clus, conf.Cluster(), signKey)
	runs := runmanager.New(runDB, runk8s.New(conf.Cluster(), clus), accountant, sessions)

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	{
		runId := "runId"
		e.PUT("/api/workflows/:runId/status/", handlers.ChangeRunStatusHandler(runs, runId))
		e.POST("/api/workflows/:runId/restart/", handlers.RestartRunHandler(runs, runId))
		e.GET("/api/workflows/:runId/progress/", handlers.GetRunProgressHandler(runDB, runId))
		e.GET("/api/workflows/:runId/logs/", handlers.GetRunLogsHandler(runDB, runId))
	}

	{
		runId := "runId"
		e.POST("/api/workflows/:runId/session/", handlers.CreateSessionHandler(runDB, sessions, runId))
		e.GET("/api/workflows/:runId/session/", handlers.GetSessionHandler(sessions, runId))
		e.DELETE("/api/workflows/:runId/session/", handlers.DeleteSessionHandler(sessions, runId))
	}

	for _, r := range e.Routes() {
		e.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := e.Start(fmt.Sprintf(":%d", conf.Port())); err != nil && err != http.ErrServerClosed {
			ch <- err
		}
	}()

	exit := 0
	select {
	case <-ctx.Done():
		if err := ctx.Err(); err != nil {
			e.Logger.Infof("context has been done: %s, cause: %s", err, context.Cause(ctx))
		}
	case err := <-ch:
		if err != nil {
			e.Logger.Error("server stops with error:", err)
			exit = 1
		}
	}

	{
		e.Logger.Info("shutting down...")
		qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer qcancel()

		if err := e.Shutdown(qctx); err != nil {
			e.Logger.Fatalf("shutdown with error. %+v", err)
			os.Exit(1)
		}
		os.Exit(exit)
	}
}
