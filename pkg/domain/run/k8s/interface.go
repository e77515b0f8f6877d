package k8s

import (
	"context"

	cconf "github.com/reanahub/reana-workflow-controller/pkg/configs/controller"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/errors/k8serrors"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s/dask"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s/driver"
)

// Interface is the cluster-facing side of run execution: it provisions,
// finds and removes the driver job and the per-run Dask cluster.
//
// All resources are named by NamingConvention, so each operation needs
// only the run (or its id) to locate them.
type Interface interface {
	SpawnDriver(ctx context.Context, r domain.Run) (driver.Driver, error)
	FindDriver(ctx context.Context, r domain.RunBody) (driver.Driver, error)

	// RemoveDriver deletes the driver job of a run.
	//
	// A driver that is already gone is not an error.
	RemoveDriver(ctx context.Context, runId string) error

	SpawnComputeCluster(ctx context.Context, r domain.Run) (dask.ComputeCluster, error)
	FindComputeCluster(ctx context.Context, r domain.RunBody) (dask.ComputeCluster, error)

	// RemoveComputeCluster deletes the Dask scheduler, its service and
	// the workers of a run, each on its own. Resources already gone are
	// not an error, and a partially provisioned cluster is reclaimed.
	RemoveComputeCluster(ctx context.Context, runId string) error
}

type impl struct {
	cluster cluster.Cluster
	conf    *cconf.WorkflowClusterConfig
	naming  NamingConvention
}

func New(conf *cconf.WorkflowClusterConfig, cluster cluster.Cluster) Interface {
	return &impl{
		cluster: cluster,
		conf:    conf,
		naming:  DefaultNamingConvention(),
	}
}

func (i *impl) SpawnDriver(ctx context.Context, r domain.Run) (driver.Driver, error) {
	ex, err := driver.New(&r, i.naming.Driver(r.Id), i.conf)
	if err != nil {
		return nil, err
	}
	return driver.Spawn(ctx, i.cluster, i.conf, ex)
}

func (i *impl) FindDriver(ctx context.Context, rb domain.RunBody) (driver.Driver, error) {
	return driver.Find(ctx, i.cluster, rb.Id, i.naming.Driver(rb.Id))
}

func (i *impl) RemoveDriver(ctx context.Context, runId string) error {
	d, err := driver.Find(ctx, i.cluster, runId, i.naming.Driver(runId))
	if err != nil {
		if k8serrors.AsMissingError(err) {
			return nil
		}
		return err
	}
	if err := d.Close(); err != nil && !k8serrors.AsMissingError(err) {
		return err
	}
	return nil
}

func (i *impl) SpawnComputeCluster(ctx context.Context, r domain.Run) (dask.ComputeCluster, error) {
	b, err := dask.New(
		&r, i.naming.DaskScheduler(r.Id), i.naming.DaskWorker(r.Id), i.conf,
	)
	if err != nil {
		return nil, err
	}
	return dask.Spawn(ctx, i.cluster, i.conf, b)
}

func (i *impl) FindComputeCluster(ctx context.Context, rb domain.RunBody) (dask.ComputeCluster, error) {
	b, err := dask.New(
		&domain.Run{RunBody: rb},
		i.naming.DaskScheduler(rb.Id), i.naming.DaskWorker(rb.Id), i.conf,
	)
	if err != nil {
		return nil, err
	}
	return dask.Find(ctx, i.cluster, b)
}

func (i *impl) RemoveComputeCluster(ctx context.Context, runId string) error {
	b, err := dask.New(
		&domain.Run{RunBody: domain.RunBody{Id: runId}},
		i.naming.DaskScheduler(runId), i.naming.DaskWorker(runId), i.conf,
	)
	if err != nil {
		return err
	}
	return dask.Remove(ctx, i.cluster, b)
}
