package driver_test

import (
	"encoding/json"
	"testing"

	cfg "github.com/reanahub/reana-workflow-controller/pkg/configs/controller"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s/driver"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/try"
	kubecore "k8s.io/api/core/v1"
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
    nodeSelector:
      workloads: runs
  dask:
    schedulerImage: wf-repo/dask-scheduler:v1.0.0
    workerImage: wf-repo/dask-worker:v1.0.0
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

func aRun(options map[string]string) *domain.Run {
	return &domain.Run{
		RunBody: domain.RunBody{
			Id:        "run-1",
			OwnerId:   "owner-1",
			Name:      "analysis",
			Status:    domain.StatusPending,
			Engine:    domain.EngineSerial,
			Workspace: "/var/reana/run-1",
		},
		Options: options,
	}
}

func containerNames(containers []kubecore.Container) []string {
	names := make([]string, 0, len(containers))
	for _, c := range containers {
		names = append(names, c.Name)
	}
	return names
}

func TestNew(t *testing.T) {
	conf := testConfig(t)

	t.Run("it rejects a run of an unconfigured engine", func(t *testing.T) {
		r := aRun(nil)
		r.Engine = domain.EngineSnakemake
		if _, err := driver.New(r, "batch-run-run-1", conf.Cluster()); err == nil {
			t.Error("an unconfigured engine should not build")
		}
	})
}

func TestBuild(t *testing.T) {
	conf := testConfig(t)

	t.Run("it builds a job with the engine and job-controller containers", func(t *testing.T) {
		ex := try.To(driver.New(aRun(nil), "batch-run-run-1", conf.Cluster())).OrFatal(t)
		job := ex.Build(conf.Cluster())

		if job.ObjectMeta.Name != "batch-run-run-1" {
			t.Errorf("unexpected job name: %s", job.ObjectMeta.Name)
		}
		if job.ObjectMeta.Namespace != "reana-runs" {
			t.Errorf("unexpected namespace: %s", job.ObjectMeta.Namespace)
		}
		if got := job.ObjectMeta.Labels["reana/driver.run_id"]; got != "run-1" {
			t.Errorf("unexpected run id label: %s", got)
		}

		podSpec := job.Spec.Template.Spec
		names := containerNames(podSpec.Containers)
		want := []string{driver.ContainerEngine, driver.ContainerJobController}
		if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
			t.Errorf("unexpected containers: %v", names)
		}

		if podSpec.RestartPolicy != kubecore.RestartPolicyNever {
			t.Errorf("unexpected restart policy: %s", podSpec.RestartPolicy)
		}
		if got := podSpec.NodeSelector["workloads"]; got != "runs" {
			t.Errorf("unexpected node selector: %v", podSpec.NodeSelector)
		}

		claim := podSpec.Volumes[0].PersistentVolumeClaim
		if claim == nil || claim.ClaimName != "shared-workspaces" {
			t.Errorf("the workspace claim is not mounted: %+v", podSpec.Volumes)
		}
	})

	t.Run("it hands the run identity and options to the engine", func(t *testing.T) {
		options := map[string]string{"CACHE": "off"}
		ex := try.To(driver.New(aRun(options), "batch-run-run-1", conf.Cluster())).OrFatal(t)
		job := ex.Build(conf.Cluster())

		engine := job.Spec.Template.Spec.Containers[0]
		if engine.Image != "wf-repo/engine-serial:v1.2.3" {
			t.Errorf("unexpected engine image: %s", engine.Image)
		}

		env := map[string]string{}
		for _, e := range engine.Env {
			env[e.Name] = e.Value
		}
		if env["WORKFLOW_ID"] != "run-1" {
			t.Errorf("unexpected WORKFLOW_ID: %s", env["WORKFLOW_ID"])
		}
		if env["WORKFLOW_WORKSPACE"] != "/var/reana/run-1" {
			t.Errorf("unexpected WORKFLOW_WORKSPACE: %s", env["WORKFLOW_WORKSPACE"])
		}
		if env["JOB_CONTROLLER_ADDRESS"] != "http://localhost:5000" {
			t.Errorf("unexpected JOB_CONTROLLER_ADDRESS: %s", env["JOB_CONTROLLER_ADDRESS"])
		}

		got := map[string]string{}
		if err := json.Unmarshal([]byte(env["OPERATIONAL_OPTIONS"]), &got); err != nil {
			t.Fatalf("OPERATIONAL_OPTIONS is not JSON: %v", err)
		}
		if got["CACHE"] != "off" {
			t.Errorf("unexpected options: %v", got)
		}
	})

	t.Run("it adds credential sidecars when the options ask for them", func(t *testing.T) {
		for name, testcase := range map[string]struct {
			options map[string]string
			want    []string
		}{
			"kerberos": {
				options: map[string]string{driver.OptionKerberos: "true"},
				want:    []string{driver.ContainerEngine, driver.ContainerJobController, driver.ContainerKerberos},
			},
			"voms": {
				options: map[string]string{driver.OptionVomsProxy: "true"},
				want:    []string{driver.ContainerEngine, driver.ContainerJobController, driver.ContainerVoms},
			},
			"both": {
				options: map[string]string{driver.OptionKerberos: "true", driver.OptionVomsProxy: "true"},
				want:    []string{driver.ContainerEngine, driver.ContainerJobController, driver.ContainerKerberos, driver.ContainerVoms},
			},
			"explicitly off": {
				options: map[string]string{driver.OptionKerberos: "false"},
				want:    []string{driver.ContainerEngine, driver.ContainerJobController},
			},
		} {
			t.Run(name, func(t *testing.T) {
				ex := try.To(driver.New(aRun(testcase.options), "batch-run-run-1", conf.Cluster())).OrFatal(t)
				job := ex.Build(conf.Cluster())

				names := containerNames(job.Spec.Template.Spec.Containers)
				if len(names) != len(testcase.want) {
					t.Fatalf("unexpected containers: %v, want %v", names, testcase.want)
				}
				for i := range testcase.want {
					if names[i] != testcase.want[i] {
						t.Errorf("unexpected containers: %v, want %v", names, testcase.want)
						break
					}
				}
			})
		}
	})
}
