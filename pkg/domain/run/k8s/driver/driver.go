package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	containername "github.com/google/go-containerregistry/pkg/name"
	cconf "github.com/reanahub/reana-workflow-controller/pkg/configs/controller"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/metasource"
	ptr "github.com/reanahub/reana-workflow-controller/pkg/utils/pointer"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/retry"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// container names inside the driver pod.
const (
	ContainerEngine        = "engine"
	ContainerJobController = "job-controller"
	ContainerKerberos      = "krb5-renewer"
	ContainerVoms          = "voms-renewer"
)

// operational options switching credential sidecars on.
const (
	OptionKerberos = "kerberos"
	OptionVomsProxy = "voms_proxy"
)

const workspaceVolume = "workspace"

type RunIdentifier struct {
	domain.RunBody

	// ObjectMeta.Name of the driver job, from the naming convention.
	InstanceName string
}

func (ri RunIdentifier) Name() string {
	return ri.Component()
}

func (ri RunIdentifier) Instance() string {
	return ri.InstanceName
}

func (ri RunIdentifier) Component() string {
	return "driver"
}

func (ri RunIdentifier) Id() string {
	return ri.RunBody.Id
}

func (ri RunIdentifier) IdType() string {
	return "run_id"
}

func (ri RunIdentifier) Extras() map[string]string {
	return map[string]string{
		"owner": ri.RunBody.OwnerId,
	}
}

func (ri *RunIdentifier) ObjectMeta(namespace string) kubeapimeta.ObjectMeta {
	return metasource.ToObjectMeta(ri, namespace)
}

// Executable is a validated driver pod blueprint: the engine container,
// the job-controller sidecar, and credential sidecars switched on by
// the run's operational options.
type Executable struct {
	RunIdentifier

	EngineImage string
	Options     map[string]string

	withKerberos bool
	withVoms     bool
}

var _ metasource.ResourceBuilder[*cconf.WorkflowClusterConfig, *kubebatch.Job] = &Executable{}

// New validates the run against the cluster configuration and returns
// a driver blueprint.
//
// Every image that will be put in the pod is checked to be a parsable
// image reference here, so a misconfiguration fails before anything is
// submitted to the cluster.
func New(r *domain.Run, instanceName string, conf *cconf.WorkflowClusterConfig) (*Executable, error) {
	engine, ok := conf.Engine(r.Engine)
	if !ok {
		return nil, fmt.Errorf("engine '%s' is not configured", r.Engine)
	}

	images := []string{engine.Image(), conf.Runner().JobController().Image()}

	withKerberos := r.Options[OptionKerberos] == "true"
	if withKerberos {
		images = append(images, conf.Runner().Kerberos().Image())
	}
	withVoms := r.Options[OptionVomsProxy] == "true"
	if withVoms {
		images = append(images, conf.Runner().Voms().Image())
	}

	for _, img := range images {
		if _, err := containername.ParseReference(img); err != nil {
			return nil, fmt.Errorf("malformed image reference '%s': %w", img, err)
		}
	}

	return &Executable{
		RunIdentifier: RunIdentifier{RunBody: r.RunBody, InstanceName: instanceName},
		EngineImage:   engine.Image(),
		Options:       r.Options,
		withKerberos:  withKerberos,
		withVoms:      withVoms,
	}, nil
}

// convert Executable into a kubernetes Job spec.
func (r *Executable) Build(conf *cconf.WorkflowClusterConfig) *kubebatch.Job {
	workspaceMount := kubecore.VolumeMount{
		Name:      workspaceVolume,
		MountPath: conf.Workspaces().Root(),
	}

	options, _ := json.Marshal(r.Options)

	env := []kubecore.EnvVar{
		{Name: "WORKFLOW_ID", Value: r.RunBody.Id},
		{Name: "WORKFLOW_WORKSPACE", Value: r.RunBody.Workspace},
		{Name: "WORKFLOW_ENGINE", Value: string(r.RunBody.Engine)},
		{Name: "OPERATIONAL_OPTIONS", Value: string(options)},
		{
			Name:  "JOB_CONTROLLER_ADDRESS",
			Value: fmt.Sprintf("http://localhost:%d", conf.Runner().JobController().Port()),
		},
	}

	containers := []kubecore.Container{
		{
			Name:         ContainerEngine,
			Image:        r.EngineImage,
			VolumeMounts: []kubecore.VolumeMount{workspaceMount},
			Env:          env,
		},
		{
			Name:  ContainerJobController,
			Image: conf.Runner().JobController().Image(),
			Ports: []kubecore.ContainerPort{
				{Name: "http", ContainerPort: conf.Runner().JobController().Port()},
			},
			VolumeMounts: []kubecore.VolumeMount{workspaceMount},
			Env: []kubecore.EnvVar{
				{Name: "WORKFLOW_ID", Value: r.RunBody.Id},
				{Name: "WORKFLOW_WORKSPACE", Value: r.RunBody.Workspace},
			},
		},
	}

	sidecarResources := kubecore.ResourceRequirements{
		Limits: kubecore.ResourceList{
			"cpu":    resource.MustParse("100m"),
			"memory": resource.MustParse("100Mi"),
		},
	}
	if r.withKerberos {
		containers = append(containers, kubecore.Container{
			Name:         ContainerKerberos,
			Image:        conf.Runner().Kerberos().Image(),
			VolumeMounts: []kubecore.VolumeMount{workspaceMount},
			Resources:    sidecarResources,
		})
	}
	if r.withVoms {
		containers = append(containers, kubecore.Container{
			Name:         ContainerVoms,
			Image:        conf.Runner().Voms().Image(),
			VolumeMounts: []kubecore.VolumeMount{workspaceMount},
			Resources:    sidecarResources,
		})
	}

	return &kubebatch.Job{
		ObjectMeta: r.ObjectMeta(conf.Namespace()),
		Spec: kubebatch.JobSpec{
			Parallelism:  ptr.Ref[int32](1),
			BackoffLimit: ptr.Ref[int32](0),
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{
					Labels: metasource.ToLabels(r),
				},
				Spec: kubecore.PodSpec{
					RestartPolicy:      kubecore.RestartPolicyNever,
					EnableServiceLinks: ptr.Ref(false),
					NodeSelector:       conf.Runner().NodeSelector(),
					Containers:         containers,
					Volumes: []kubecore.Volume{
						{
							Name: workspaceVolume,
							VolumeSource: kubecore.VolumeSource{
								PersistentVolumeClaim: &kubecore.PersistentVolumeClaimVolumeSource{
									ClaimName: conf.Workspaces().ClaimName(),
								},
							},
						},
					},
				},
			},
		},
	}
}

// Driver is a handle on the running (or ran) driver job of a run.
type Driver interface {
	// RunId returns the run ID the driver executes.
	RunId() string

	// JobStatus returns the status of the driver job.
	//
	// This is a snapshot taken when the handle was obtained.
	JobStatus() cluster.JobStatus

	// ExitCode of the engine container, when it has terminated.
	ExitCode() (code uint8, reason string, ok bool)

	// Log returns the log stream of the engine container.
	Log(ctx context.Context) (io.ReadCloser, error)

	// Close deletes the driver job and its pods.
	Close() error
}

type driver struct {
	runId string
	job   cluster.Job
}

func (d *driver) RunId() string {
	return d.runId
}

func (d *driver) JobStatus() cluster.JobStatus {
	return d.job.Status()
}

func (d *driver) ExitCode() (uint8, string, bool) {
	return d.job.ExitCode(ContainerEngine)
}

func (d *driver) Log(ctx context.Context) (io.ReadCloser, error) {
	return d.job.Log(ctx, ContainerEngine)
}

func (d *driver) Close() error {
	return d.job.Close()
}

// Spawn submits a new driver job and waits for it to be accepted.
func Spawn(
	ctx context.Context,
	clus cluster.Cluster,
	conf *cconf.WorkflowClusterConfig,
	ex metasource.ResourceBuilder[*cconf.WorkflowClusterConfig, *kubebatch.Job],
) (Driver, error) {
	prom := <-clus.NewJob(
		ctx,
		retry.Static(3*time.Second),
		ex.Build(conf),
	)

	if prom.Err != nil {
		return nil, prom.Err
	}

	return &driver{runId: ex.Id(), job: prom.Value}, nil
}

// Find looks up the driver job of a run by its deterministic name.
func Find(
	ctx context.Context,
	clus cluster.Cluster,
	runId string,
	instanceName string,
) (Driver, error) {
	prom := <-clus.GetJob(
		ctx,
		retry.Static(3*time.Second),
		instanceName,
	)

	if prom.Err != nil {
		return nil, prom.Err
	}

	return &driver{runId: runId, job: prom.Value}, nil
}
