package controller

import (
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"k8s.io/apimachinery/pkg/api/resource"
)

type ControllerConfig struct {
	port     int32
	cluster  *WorkflowClusterConfig
	consumer *ConsumerConfig
}

func (c *ControllerConfig) Port() int32 {
	return c.port
}

func (c *ControllerConfig) Cluster() *WorkflowClusterConfig {
	return c.cluster
}

func (c *ControllerConfig) Consumer() *ConsumerConfig {
	return c.consumer
}

// Configuration for the workflow cluster.
//
// to get `WorkflowClusterConfig` instance, use `WorkflowClusterConfigMarshall.TrySeal()` .
type WorkflowClusterConfig struct {
	namespace  string
	domain     string
	database   string
	broker     string
	workspaces *WorkspacesConfig
	engines    map[domain.EngineKind]*EngineConfig
	runner     *RunnerConfig
	dask       *DaskConfig
	session    *SessionConfig
}

// k8s namespace where runs are deployed.
func (k *WorkflowClusterConfig) Namespace() string {
	return k.namespace
}

// k8s domain of the cluster. default = "cluster.local"
func (k *WorkflowClusterConfig) Domain() string {
	return k.domain
}

// Connection string for database.
func (k *WorkflowClusterConfig) Database() string {
	return k.database
}

// Connection string for the message broker.
func (k *WorkflowClusterConfig) Broker() string {
	return k.broker
}

func (k *WorkflowClusterConfig) Workspaces() *WorkspacesConfig {
	return k.workspaces
}

// Engine returns the container configuration for an engine kind.
func (k *WorkflowClusterConfig) Engine(kind domain.EngineKind) (*EngineConfig, bool) {
	e, ok := k.engines[kind]
	return e, ok
}

func (k *WorkflowClusterConfig) Runner() *RunnerConfig {
	return k.runner
}

func (k *WorkflowClusterConfig) Dask() *DaskConfig {
	return k.dask
}

func (k *WorkflowClusterConfig) Session() *SessionConfig {
	return k.session
}

// Settings for run workspaces on the shared volume.
type WorkspacesConfig struct {
	claimName    string
	root         string
	defaultQuota resource.Quantity
}

// PersistentVolumeClaim holding all workspaces.
func (w *WorkspacesConfig) ClaimName() string {
	return w.claimName
}

// Mount path of the shared volume inside run pods.
func (w *WorkspacesConfig) Root() string {
	return w.root
}

// Disk quota applied to owners without an explicit quota record.
func (w *WorkspacesConfig) DefaultQuota() resource.Quantity {
	return w.defaultQuota
}

// Container image running a workflow engine.
type EngineConfig struct {
	image string
}

func (e *EngineConfig) Image() string {
	return e.image
}

// Sidecars accompanying the engine container in the driver pod.
type RunnerConfig struct {
	jobController *JobControllerConfig
	kerberos      *SidecarConfig
	voms          *SidecarConfig
	nodeSelector  map[string]string
}

func (r *RunnerConfig) JobController() *JobControllerConfig {
	return r.jobController
}

// Kerberos ticket renewer sidecar, attached on demand.
func (r *RunnerConfig) Kerberos() *SidecarConfig {
	return r.kerberos
}

// voms-proxy renewer sidecar, attached on demand.
func (r *RunnerConfig) Voms() *SidecarConfig {
	return r.voms
}

func (r *RunnerConfig) NodeSelector() map[string]string {
	return r.nodeSelector
}

type JobControllerConfig struct {
	image string
	port  int32
}

func (j *JobControllerConfig) Image() string {
	return j.image
}

func (j *JobControllerConfig) Port() int32 {
	return j.port
}

type SidecarConfig struct {
	image string
}

func (s *SidecarConfig) Image() string {
	return s.image
}

// On-demand Dask cluster settings.
type DaskConfig struct {
	schedulerImage string
	workerImage    string
	minWorkers     int32
	maxWorkers     int32
}

func (d *DaskConfig) SchedulerImage() string {
	return d.schedulerImage
}

func (d *DaskConfig) WorkerImage() string {
	return d.workerImage
}

func (d *DaskConfig) MinWorkers() int32 {
	return d.minWorkers
}

func (d *DaskConfig) MaxWorkers() int32 {
	return d.maxWorkers
}

// Interactive session settings.
type SessionConfig struct {
	image       string
	port        int32
	ingressHost string
	signKeyFile string
}

func (s *SessionConfig) Image() string {
	return s.image
}

func (s *SessionConfig) Port() int32 {
	return s.port
}

// Host under which session ingresses are published.
func (s *SessionConfig) IngressHost() string {
	return s.ingressHost
}

// File holding the HS256 key signing session access tokens.
func (s *SessionConfig) SignKeyFile() string {
	return s.signKeyFile
}

// Settings for the job-status consumer process.
type ConsumerConfig struct {
	queue       string
	metricsPort int32
}

// Broker queue carrying job status messages. default = "jobs-status"
func (c *ConsumerConfig) Queue() string {
	return c.queue
}

func (c *ConsumerConfig) MetricsPort() int32 {
	return c.metricsPort
}
