package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reanahub/reana-workflow-controller/pkg/configs/controller"
	kpool "github.com/reanahub/reana-workflow-controller/pkg/conn/db/postgres/pool"
	"github.com/reanahub/reana-workflow-controller/pkg/consumer"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster"
	runpg "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db/postgres"
	runk8s "github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s"
	runmanager "github.com/reanahub/reana-workflow-controller/pkg/domain/run/manager"
	sessionpg "github.com/reanahub/reana-workflow-controller/pkg/domain/session/db/postgres"
	sessionmanager "github.com/reanahub/reana-workflow-controller/pkg/domain/session/manager"
	workspacepg "github.com/reanahub/reana-workflow-controller/pkg/domain/workspace/db/postgres"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/filewatch"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/kubeutil"
)

func main() {

	pconfig := flag.String(
		"config", os.Getenv("REANA_CONTROLLER_CONFIG"), "path to config file",
	)
	kubeconfig := flag.String("kubeconfig", "", "path to kubeconfig file (out-of-cluster use)")
	flag.Parse()

	logger := log.New(os.Stderr, "[consumer] ", log.LstdFlags)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	conf, err := controller.LoadControllerConfig(*pconfig)
	if err != nil {
		logger.Fatalf("can not read configuration: %s", err)
	}

	// quit (to be restarted) when the config file changes.
	{
		wctx, wcancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatalf("can not watch configuration: %s", err)
		}
		defer wcancel()
		ctx = wctx
	}

	pool, err := kpool.New(ctx, conf.Cluster().Database())
	if err != nil {
		logger.Fatalf("can not connect to database: %s", err)
	}

	clientset, err := kubeutil.ConnectToK8s(*kubeconfig)
	if err != nil {
		logger.Fatalf("can not connect to kubernetes: %s", err)
	}
	clus := cluster.AttachCluster(
		cluster.WrapK8sClient(clientset),
		conf.Cluster().Namespace(),
		conf.Cluster().Domain(),
	)

	signKey, err := os.ReadFile(conf.Cluster().Session().SignKeyFile())
	if err != nil {
		logger.Fatalf("can not read session sign key: %s", err)
	}

	runDB := runpg.New(pool)
	sessionDB := sessionpg.New(pool)
	defaultQuota := conf.Cluster().Workspaces().DefaultQuota()
	accountant := workspacepg.New(
		pool, defaultQuota.Value(),
	)
	sessions := sessionmanager.New(sessionDB, clus, conf.Cluster(), signKey)
	runs := runmanager.New(runDB, runk8s.New(conf.Cluster(), clus), accountant, sessions)

	reg := prometheus.NewRegistry()
	metrics := consumer.NewMetrics(reg)

	metricsServer := &http.Server{
		Addr: fmt.Sprintf(":%d", conf.Consumer().MetricsPort()),
		Handler: promhttp.HandlerFor(
			reg, promhttp.HandlerOpts{Registry: reg},
		),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics endpoint stopped: %s", err)
		}
	}()

	subscriber := consumer.NewSubscriber(
		conf.Cluster().Broker(),
		conf.Consumer().Queue(),
		consumer.NewHandler(runDB, runs, logger),
		metrics,
		logger,
	)

	logger.Printf("consuming job status messages from queue %s", conf.Consumer().Queue())
	if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatalf("consumer stopped: %s", err)
	}

	{
		qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer qcancel()
		if err := metricsServer.Shutdown(qctx); err != nil {
			logger.Printf("metrics endpoint shutdown: %s", err)
		}
	}
}
