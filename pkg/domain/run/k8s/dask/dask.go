package dask

import (
	"context"
	"errors"
	"fmt"
	"time"

	containername "github.com/google/go-containerregistry/pkg/name"
	cconf "github.com/reanahub/reana-workflow-controller/pkg/configs/controller"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/errors/k8serrors"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/metasource"
	ptr "github.com/reanahub/reana-workflow-controller/pkg/utils/pointer"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/retry"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const schedulerPort = int32(8786)

// bounds of the worker deployment, recorded on the descriptor for an
// external autoscaler to honor.
const (
	annotationMinWorkers = "reana/dask.min-workers"
	annotationMaxWorkers = "reana/dask.max-workers"
)

type identifier struct {
	run       domain.RunBody
	component string
	instance  string
}

func (i identifier) Name() string      { return i.component }
func (i identifier) Instance() string  { return i.instance }
func (i identifier) Component() string { return i.component }
func (i identifier) Id() string        { return i.run.Id }
func (i identifier) IdType() string    { return "run_id" }

func (i *identifier) ObjectMeta(namespace string) kubeapimeta.ObjectMeta {
	return metasource.ToObjectMeta(i, namespace)
}

// Blueprint is the validated descriptor set of one run's Dask cluster:
// a scheduler deployment, its service, and a worker deployment scaled
// between the configured bounds.
type Blueprint struct {
	Run domain.RunBody

	SchedulerName string
	WorkerName    string
}

// New validates the configured Dask images and returns a blueprint.
func New(r *domain.Run, schedulerName string, workerName string, conf *cconf.WorkflowClusterConfig) (*Blueprint, error) {
	for _, img := range []string{conf.Dask().SchedulerImage(), conf.Dask().WorkerImage()} {
		if _, err := containername.ParseReference(img); err != nil {
			return nil, fmt.Errorf("malformed image reference '%s': %w", img, err)
		}
	}
	return &Blueprint{
		Run:           r.RunBody,
		SchedulerName: schedulerName,
		WorkerName:    workerName,
	}, nil
}

func (b *Blueprint) scheduler() *identifier {
	return &identifier{run: b.Run, component: "dask-scheduler", instance: b.SchedulerName}
}

func (b *Blueprint) worker() *identifier {
	return &identifier{run: b.Run, component: "dask-worker", instance: b.WorkerName}
}

// BuildScheduler renders the scheduler deployment.
func (b *Blueprint) BuildScheduler(conf *cconf.WorkflowClusterConfig) *kubeapps.Deployment {
	id := b.scheduler()
	labels := metasource.ToLabels(id)
	return &kubeapps.Deployment{
		ObjectMeta: id.ObjectMeta(conf.Namespace()),
		Spec: kubeapps.DeploymentSpec{
			Replicas: ptr.Ref[int32](1),
			Selector: &kubeapimeta.LabelSelector{MatchLabels: labels},
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{Labels: labels},
				Spec: kubecore.PodSpec{
					NodeSelector: conf.Runner().NodeSelector(),
					Containers: []kubecore.Container{
						{
							Name:  "scheduler",
							Image: conf.Dask().SchedulerImage(),
							Args:  []string{"dask-scheduler", "--port", fmt.Sprint(schedulerPort)},
							Ports: []kubecore.ContainerPort{
								{Name: "comm", ContainerPort: schedulerPort},
							},
						},
					},
				},
			},
		},
	}
}

// BuildSchedulerService renders the service in front of the scheduler.
// It shares the scheduler's name so it is reconstructible from the run id.
func (b *Blueprint) BuildSchedulerService(conf *cconf.WorkflowClusterConfig) *kubecore.Service {
	id := b.scheduler()
	return &kubecore.Service{
		ObjectMeta: id.ObjectMeta(conf.Namespace()),
		Spec: kubecore.ServiceSpec{
			Selector: metasource.ToLabels(id),
			Ports: []kubecore.ServicePort{
				{Name: "comm", Port: schedulerPort},
			},
		},
	}
}

// BuildWorkers renders the worker deployment, starting at the lower
// autoscale bound.
func (b *Blueprint) BuildWorkers(conf *cconf.WorkflowClusterConfig) *kubeapps.Deployment {
	id := b.worker()
	labels := metasource.ToLabels(id)
	meta := id.ObjectMeta(conf.Namespace())
	meta.Annotations = map[string]string{
		annotationMinWorkers: fmt.Sprint(conf.Dask().MinWorkers()),
		annotationMaxWorkers: fmt.Sprint(conf.Dask().MaxWorkers()),
	}
	return &kubeapps.Deployment{
		ObjectMeta: meta,
		Spec: kubeapps.DeploymentSpec{
			Replicas: ptr.Ref(conf.Dask().MinWorkers()),
			Selector: &kubeapimeta.LabelSelector{MatchLabels: labels},
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{Labels: labels},
				Spec: kubecore.PodSpec{
					NodeSelector: conf.Runner().NodeSelector(),
					Containers: []kubecore.Container{
						{
							Name:  "worker",
							Image: conf.Dask().WorkerImage(),
							Args:  []string{"dask-worker"},
							Env: []kubecore.EnvVar{
								{
									Name:  "DASK_SCHEDULER_ADDRESS",
									Value: fmt.Sprintf("tcp://%s:%d", b.SchedulerName, schedulerPort),
								},
							},
						},
					},
				},
			},
		},
	}
}

// ComputeCluster is a handle on a run's provisioned Dask cluster.
type ComputeCluster interface {
	// RunId returns the run the cluster computes for.
	RunId() string

	// SchedulerAddress workers and engine connect to.
	SchedulerAddress() string

	// Close deletes the scheduler, its service and the workers.
	// Resources already gone are not an error.
	Close() error
}

type computeCluster struct {
	runId            string
	schedulerAddress string

	closers []func() error
}

func (c *computeCluster) RunId() string {
	return c.runId
}

func (c *computeCluster) SchedulerAddress() string {
	return c.schedulerAddress
}

func (c *computeCluster) Close() error {
	var errs []error
	for _, close := range c.closers {
		if err := close(); err != nil && !k8serrors.AsMissingError(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Spawn provisions the Dask cluster of a run and waits until the
// scheduler has replicas and its service has an address.
//
// On any failure the already created resources are left for the caller
// to reclaim with Find + Close; Spawn itself does not compensate.
func Spawn(
	ctx context.Context,
	clus cluster.Cluster,
	conf *cconf.WorkflowClusterConfig,
	b *Blueprint,
) (ComputeCluster, error) {
	backoff := retry.Static(3 * time.Second)

	schedProm := clus.NewDeployment(ctx, backoff, b.BuildScheduler(conf))
	svcProm := clus.NewService(ctx, backoff, b.BuildSchedulerService(conf))
	workerProm := clus.NewDeployment(
		ctx, backoff, b.BuildWorkers(conf),
		// zero replicas is a legal lower bound; creation is enough.
		cluster.DeploymentHasBeenCreated,
	)

	cc := &computeCluster{runId: b.Run.Id}

	sched := <-schedProm
	if sched.Value != nil {
		cc.closers = append(cc.closers, sched.Value.Close)
	}
	svc := <-svcProm
	if svc.Value != nil {
		cc.closers = append(cc.closers, svc.Value.Close)
	}
	workers := <-workerProm
	if workers.Value != nil {
		cc.closers = append(cc.closers, workers.Value.Close)
	}

	for _, err := range []error{sched.Err, svc.Err, workers.Err} {
		if err != nil {
			return cc, err
		}
	}

	cc.schedulerAddress = fmt.Sprintf("tcp://%s:%d", svc.Value.Host(), schedulerPort)
	return cc, nil
}

// Find looks up the compute cluster of a run by its deterministic names.
func Find(
	ctx context.Context,
	clus cluster.Cluster,
	b *Blueprint,
) (ComputeCluster, error) {
	backoff := retry.Static(3 * time.Second)

	sched := <-clus.GetDeployment(ctx, backoff, b.SchedulerName, cluster.DeploymentHasBeenCreated)
	if sched.Err != nil {
		return nil, sched.Err
	}
	svc := <-clus.GetService(ctx, backoff, b.SchedulerName)
	if svc.Err != nil {
		return nil, svc.Err
	}
	workers := <-clus.GetDeployment(ctx, backoff, b.WorkerName, cluster.DeploymentHasBeenCreated)
	if workers.Err != nil {
		return nil, workers.Err
	}

	return &computeCluster{
		runId:            b.Run.Id,
		schedulerAddress: fmt.Sprintf("tcp://%s:%d", svc.Value.Host(), schedulerPort),
		closers:          []func() error{sched.Value.Close, svc.Value.Close, workers.Value.Close},
	}, nil
}

// Remove deletes whatever of a run's compute cluster exists, one
// resource at a time. A resource already gone does not block the others,
// so a partially provisioned cluster is reclaimed too.
func Remove(ctx context.Context, clus cluster.Cluster, b *Blueprint) error {
	backoff := retry.Static(3 * time.Second)

	var errs []error
	reclaim := func(found interface{ Close() error }, err error) {
		switch {
		case err == nil:
			if err := found.Close(); err != nil && !k8serrors.AsMissingError(err) {
				errs = append(errs, err)
			}
		case !k8serrors.AsMissingError(err):
			errs = append(errs, err)
		}
	}

	sched := <-clus.GetDeployment(ctx, backoff, b.SchedulerName, cluster.DeploymentHasBeenCreated)
	reclaim(sched.Value, sched.Err)

	svc := <-clus.GetService(ctx, backoff, b.SchedulerName, cluster.ServiceHasBeenCreated)
	reclaim(svc.Value, svc.Err)

	workers := <-clus.GetDeployment(ctx, backoff, b.WorkerName, cluster.DeploymentHasBeenCreated)
	reclaim(workers.Value, workers.Err)

	return errors.Join(errs...)
}
