package dask_test

import (
	"context"
	"testing"

	cfg "github.com/reanahub/reana-workflow-controller/pkg/configs/controller"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	clustermock "github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster/mock"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s/dask"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/try"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func testConfig(t *testing.T) *cfg.ControllerConfig {
	t.Helper()
	return try.To(cfg.Unmarshal([]byte(`
port: 8580
cluster:
  namespace: reana-runs
  database: postgres://db.reana-runs.svc.cluster.local/runs
  broker: amqp://mq.reana-runs.svc.cluster.local:5672
  workspaces:
    claimName: shared-workspaces
    root: /var/reana
    defaultQuota: 20Gi
  engines:
    serial:
      image: wf-repo/engine-serial:v1.2.3
  runner:
    jobController:
      image: wf-repo/job-controller:v2.0.0
      port: 5000
    kerberos:
      image: wf-repo/krb5-renewer:v1.0.0
    voms:
      image: wf-repo/voms-renewer:v1.0.0
  dask:
    schedulerImage: wf-repo/dask-scheduler:v1.0.0
    workerImage: wf-repo/dask-worker:v1.0.0
    minWorkers: 2
    maxWorkers: 8
  session:
    image: wf-repo/session-jupyter:v1.0.0
    port: 8888
    ingressHost: sessions.example.com
    signKeyFile: /etc/controller/session-sign-key
consumer:
  metricsPort: 9100
`))).OrFatal(t)
}

func aRun() *domain.Run {
	return &domain.Run{
		RunBody: domain.RunBody{
			Id:             "run-1",
			OwnerId:        "owner-1",
			Name:           "analysis",
			Status:         domain.StatusPending,
			Engine:         domain.EngineSerial,
			ComputeBackend: domain.ComputeDask,
			Workspace:      "/var/reana/run-1",
		},
	}
}

func TestBuildScheduler(t *testing.T) {
	conf := testConfig(t)
	bp := try.To(dask.New(
		aRun(), "dask-scheduler-run-1", "dask-worker-run-1", conf.Cluster(),
	)).OrFatal(t)

	t.Run("it renders a single-replica scheduler", func(t *testing.T) {
		depl := bp.BuildScheduler(conf.Cluster())

		if depl.ObjectMeta.Name != "dask-scheduler-run-1" {
			t.Errorf("unexpected name: %s", depl.ObjectMeta.Name)
		}
		if depl.Spec.Replicas == nil || *depl.Spec.Replicas != 1 {
			t.Errorf("the scheduler should have exactly one replica: %v", depl.Spec.Replicas)
		}
		if got := depl.ObjectMeta.Labels["reana/dask-scheduler.run_id"]; got != "run-1" {
			t.Errorf("unexpected run id label: %s", got)
		}

		scheduler := depl.Spec.Template.Spec.Containers[0]
		if scheduler.Image != "wf-repo/dask-scheduler:v1.0.0" {
			t.Errorf("unexpected image: %s", scheduler.Image)
		}
		if len(scheduler.Ports) != 1 || scheduler.Ports[0].ContainerPort != 8786 {
			t.Errorf("unexpected ports: %v", scheduler.Ports)
		}
	})

	t.Run("its service shares the scheduler name and selects its pods", func(t *testing.T) {
		depl := bp.BuildScheduler(conf.Cluster())
		svc := bp.BuildSchedulerService(conf.Cluster())

		if svc.ObjectMeta.Name != depl.ObjectMeta.Name {
			t.Errorf("service name %s != scheduler name %s", svc.ObjectMeta.Name, depl.ObjectMeta.Name)
		}
		for k, v := range svc.Spec.Selector {
			if depl.Spec.Template.ObjectMeta.Labels[k] != v {
				t.Errorf("selector %s=%s does not match scheduler pods", k, v)
			}
		}
		if len(svc.Spec.Ports) != 1 || svc.Spec.Ports[0].Port != 8786 {
			t.Errorf("unexpected ports: %v", svc.Spec.Ports)
		}
	})
}

func TestBuildWorkers(t *testing.T) {
	conf := testConfig(t)
	bp := try.To(dask.New(
		aRun(), "dask-scheduler-run-1", "dask-worker-run-1", conf.Cluster(),
	)).OrFatal(t)

	depl := bp.BuildWorkers(conf.Cluster())

	t.Run("it starts at the lower autoscale bound", func(t *testing.T) {
		if depl.Spec.Replicas == nil || *depl.Spec.Replicas != 2 {
			t.Errorf("unexpected replicas: %v", depl.Spec.Replicas)
		}
	})

	t.Run("it records the bounds for the autoscaler", func(t *testing.T) {
		if got := depl.ObjectMeta.Annotations["reana/dask.min-workers"]; got != "2" {
			t.Errorf("unexpected min workers: %s", got)
		}
		if got := depl.ObjectMeta.Annotations["reana/dask.max-workers"]; got != "8" {
			t.Errorf("unexpected max workers: %s", got)
		}
	})

	t.Run("it points the workers at the scheduler service", func(t *testing.T) {
		worker := depl.Spec.Template.Spec.Containers[0]
		var addr string
		for _, e := range worker.Env {
			if e.Name == "DASK_SCHEDULER_ADDRESS" {
				addr = e.Value
			}
		}
		if addr != "tcp://dask-scheduler-run-1:8786" {
			t.Errorf("unexpected scheduler address: %s", addr)
		}
	})
}

func TestRemove(t *testing.T) {
	conf := testConfig(t)
	newBlueprint := func(t *testing.T) *dask.Blueprint {
		t.Helper()
		return try.To(dask.New(
			aRun(), "dask-scheduler-run-1", "dask-worker-run-1", conf.Cluster(),
		)).OrFatal(t)
	}

	t.Run("it tears down every resource of a complete cluster", func(t *testing.T) {
		ctx := context.Background()
		clus, client := clustermock.NewCluster()

		client.Impl.GetDeployment = func(_ context.Context, _ string, name string) (*kubeapps.Deployment, error) {
			return &kubeapps.Deployment{
				ObjectMeta: kubeapimeta.ObjectMeta{Name: name},
			}, nil
		}
		client.Impl.GetService = func(_ context.Context, _ string, name string) (*kubecore.Service, error) {
			return &kubecore.Service{
				ObjectMeta: kubeapimeta.ObjectMeta{Name: name},
			}, nil
		}
		deletedDepl := []string{}
		client.Impl.DeleteDeployment = func(_ context.Context, _ string, name string) error {
			deletedDepl = append(deletedDepl, name)
			return nil
		}
		deletedSvc := []string{}
		client.Impl.DeleteService = func(_ context.Context, _ string, name string) error {
			deletedSvc = append(deletedSvc, name)
			return nil
		}

		if err := dask.Remove(ctx, clus, newBlueprint(t)); err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if len(deletedDepl) != 2 ||
			deletedDepl[0] != "dask-scheduler-run-1" ||
			deletedDepl[1] != "dask-worker-run-1" {
			t.Errorf("unexpected deployments deleted: %v", deletedDepl)
		}
		if len(deletedSvc) != 1 || deletedSvc[0] != "dask-scheduler-run-1" {
			t.Errorf("unexpected services deleted: %v", deletedSvc)
		}
	})

	t.Run("it reclaims what exists of a partially provisioned cluster", func(t *testing.T) {
		ctx := context.Background()
		clus, client := clustermock.NewCluster()

		client.Impl.GetDeployment = func(_ context.Context, _ string, name string) (*kubeapps.Deployment, error) {
			return &kubeapps.Deployment{
				ObjectMeta: kubeapimeta.ObjectMeta{Name: name},
			}, nil
		}
		client.Impl.GetService = func(_ context.Context, _ string, name string) (*kubecore.Service, error) {
			return nil, kubeerr.NewNotFound(
				schema.GroupResource{Resource: "services"}, name,
			)
		}
		deleted := []string{}
		client.Impl.DeleteDeployment = func(_ context.Context, _ string, name string) error {
			deleted = append(deleted, name)
			return nil
		}

		if err := dask.Remove(ctx, clus, newBlueprint(t)); err != nil {
			t.Fatalf("a missing resource should not fail the removal: %+v", err)
		}
		if len(deleted) != 2 ||
			deleted[0] != "dask-scheduler-run-1" ||
			deleted[1] != "dask-worker-run-1" {
			t.Errorf("unexpected deployments deleted: %v", deleted)
		}
		if client.Called.DeleteService != 0 {
			t.Errorf("no service exists, so none should be deleted")
		}
	})
}
