package controller

import (
	"fmt"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"k8s.io/apimachinery/pkg/api/resource"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/controller.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type ControllerConfigMarshall struct {
	Port     int32                          `yaml:"port"`
	Cluster  *WorkflowClusterConfigMarshall `yaml:"cluster"`
	Consumer *ConsumerConfigMarshall        `yaml:"consumer"`
}

var _ Marshalled[*ControllerConfig] = &ControllerConfigMarshall{}

func (c *ControllerConfigMarshall) trySeal(path string) *ControllerConfig {
	return &ControllerConfig{
		port:     required(c.Port, path+".port"),
		cluster:  nonnil(c.Cluster, path+".cluster").trySeal(path + ".cluster"),
		consumer: nonnil(c.Consumer, path+".consumer").trySeal(path + ".consumer"),
	}
}

// Configuration of the workflow cluster.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `WorkflowClusterConfig`.
// You can get `WorkflowClusterConfig` instance with `TrySeal`.
type WorkflowClusterConfigMarshall struct {
	Namespace  string                          `yaml:"namespace"`
	Domain     string                          `yaml:"domain,omitempty"`
	Database   string                          `yaml:"database"`
	Broker     string                          `yaml:"broker"`
	Workspaces *WorkspacesConfigMarshall       `yaml:"workspaces"`
	Engines    map[string]*EngineConfigMarshall `yaml:"engines"`
	Runner     *RunnerConfigMarshall           `yaml:"runner"`
	Dask       *DaskConfigMarshall             `yaml:"dask"`
	Session    *SessionConfigMarshall          `yaml:"session"`
}

func (km *WorkflowClusterConfigMarshall) trySeal(path string) *WorkflowClusterConfig {
	dom := km.Domain
	if dom == "" {
		dom = "cluster.local"
	}

	if len(km.Engines) == 0 {
		panic(path + ".engines is required")
	}
	engines := map[domain.EngineKind]*EngineConfig{}
	for name, e := range km.Engines {
		kind, err := domain.AsEngineKind(name)
		if err != nil {
			panic(fmt.Errorf("%s.engines: %w", path, err))
		}
		engines[kind] = nonnil(e, path+".engines."+name).trySeal(path + ".engines." + name)
	}

	return &WorkflowClusterConfig{
		namespace:  required(km.Namespace, path+".namespace"),
		domain:     required(dom, path+".domain"),
		database:   required(km.Database, path+".database"),
		broker:     required(km.Broker, path+".broker"),
		workspaces: nonnil(km.Workspaces, path+".workspaces").trySeal(path + ".workspaces"),
		engines:    engines,
		runner:     nonnil(km.Runner, path+".runner").trySeal(path + ".runner"),
		dask:       nonnil(km.Dask, path+".dask").trySeal(path + ".dask"),
		session:    nonnil(km.Session, path+".session").trySeal(path + ".session"),
	}
}

type WorkspacesConfigMarshall struct {
	ClaimName    string `yaml:"claimName"`
	Root         string `yaml:"root"`
	DefaultQuota string `yaml:"defaultQuota"`
}

func (wm *WorkspacesConfigMarshall) trySeal(path string) *WorkspacesConfig {
	q, err := resource.ParseQuantity(
		required(wm.DefaultQuota, path+".defaultQuota"),
	)
	if err != nil {
		panic(fmt.Errorf("%s.defaultQuota can not be parsed: %w", path, err))
	}

	return &WorkspacesConfig{
		claimName:    required(wm.ClaimName, path+".claimName"),
		root:         required(wm.Root, path+".root"),
		defaultQuota: q,
	}
}

type EngineConfigMarshall struct {
	Image string `yaml:"image"`
}

func (em *EngineConfigMarshall) trySeal(path string) *EngineConfig {
	return &EngineConfig{
		image: required(em.Image, path+".image"),
	}
}

type RunnerConfigMarshall struct {
	JobController *JobControllerConfigMarshall `yaml:"jobController"`
	Kerberos      *SidecarConfigMarshall       `yaml:"kerberos"`
	Voms          *SidecarConfigMarshall       `yaml:"voms"`
	NodeSelector  map[string]string            `yaml:"nodeSelector,omitempty"`
}

func (rm *RunnerConfigMarshall) trySeal(path string) *RunnerConfig {
	return &RunnerConfig{
		jobController: nonnil(rm.JobController, path+".jobController").trySeal(path + ".jobController"),
		kerberos:      nonnil(rm.Kerberos, path+".kerberos").trySeal(path + ".kerberos"),
		voms:          nonnil(rm.Voms, path+".voms").trySeal(path + ".voms"),
		nodeSelector:  rm.NodeSelector,
	}
}

type JobControllerConfigMarshall struct {
	Image string `yaml:"image"`
	Port  int32  `yaml:"port"`
}

func (jm *JobControllerConfigMarshall) trySeal(path string) *JobControllerConfig {
	return &JobControllerConfig{
		image: required(jm.Image, path+".image"),
		port:  required(jm.Port, path+".port"),
	}
}

type SidecarConfigMarshall struct {
	Image string `yaml:"image"`
}

func (sm *SidecarConfigMarshall) trySeal(path string) *SidecarConfig {
	return &SidecarConfig{
		image: required(sm.Image, path+".image"),
	}
}

type DaskConfigMarshall struct {
	SchedulerImage string `yaml:"schedulerImage"`
	WorkerImage    string `yaml:"workerImage"`
	MinWorkers     int32  `yaml:"minWorkers,omitempty"`
	MaxWorkers     int32  `yaml:"maxWorkers"`
}

func (dm *DaskConfigMarshall) trySeal(path string) *DaskConfig {
	max := required(dm.MaxWorkers, path+".maxWorkers")
	if max < dm.MinWorkers {
		panic(fmt.Sprintf("%s: maxWorkers (%d) < minWorkers (%d)", path, max, dm.MinWorkers))
	}
	return &DaskConfig{
		schedulerImage: required(dm.SchedulerImage, path+".schedulerImage"),
		workerImage:    required(dm.WorkerImage, path+".workerImage"),
		minWorkers:     dm.MinWorkers,
		maxWorkers:     max,
	}
}

type SessionConfigMarshall struct {
	Image       string `yaml:"image"`
	Port        int32  `yaml:"port"`
	IngressHost string `yaml:"ingressHost"`
	SignKeyFile string `yaml:"signKeyFile"`
}

func (sm *SessionConfigMarshall) trySeal(path string) *SessionConfig {
	return &SessionConfig{
		image:       required(sm.Image, path+".image"),
		port:        required(sm.Port, path+".port"),
		ingressHost: required(sm.IngressHost, path+".ingressHost"),
		signKeyFile: required(sm.SignKeyFile, path+".signKeyFile"),
	}
}

type ConsumerConfigMarshall struct {
	Queue       string `yaml:"queue,omitempty"`
	MetricsPort int32  `yaml:"metricsPort"`
}

func (cm *ConsumerConfigMarshall) trySeal(path string) *ConsumerConfig {
	queue := cm.Queue
	if queue == "" {
		queue = "jobs-status"
	}
	return &ConsumerConfig{
		queue:       queue,
		metricsPort: required(cm.MetricsPort, path+".metricsPort"),
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
