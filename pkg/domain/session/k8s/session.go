package k8s

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
	kubecore "k8s.io/api/core/v1"
	kubenet "k8s.io/api/networking/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const portName = "notebook"

// Name derives the deterministic workload name of a run's session.
func Name(runId string) string {
	return "session-" + runId
}

type identifier struct {
	session domain.Session
}

func (i identifier) Name() string      { return "session" }
func (i identifier) Instance() string  { return i.session.Name }
func (i identifier) Component() string { return "session" }
func (i identifier) Id() string        { return i.session.RunId }
func (i identifier) IdType() string    { return "run_id" }

func (i identifier) Extras() map[string]string {
	return map[string]string{
		"owner": i.session.OwnerId,
		"kind":  string(i.session.Kind),
	}
}

func (i *identifier) ObjectMeta(namespace string) kubeapimeta.ObjectMeta {
	return metasource.ToObjectMeta(i, namespace)
}

// Blueprint renders the pod, service and ingress of one interactive
// session. The three share the session's workload name.
type Blueprint struct {
	Session domain.Session
}

// New validates the session image and returns a blueprint.
func New(s domain.Session, conf *cconf.WorkflowClusterConfig) (*Blueprint, error) {
	if _, err := containername.ParseReference(conf.Session().Image()); err != nil {
		return nil, fmt.Errorf(
			"malformed image reference '%s': %w", conf.Session().Image(), err,
		)
	}
	return &Blueprint{Session: s}, nil
}

func (b *Blueprint) identifier() *identifier {
	return &identifier{session: b.Session}
}

func (b *Blueprint) BuildPod(conf *cconf.WorkflowClusterConfig) *kubecore.Pod {
	id := b.identifier()
	return &kubecore.Pod{
		ObjectMeta: id.ObjectMeta(conf.Namespace()),
		Spec: kubecore.PodSpec{
			EnableServiceLinks: ptr.Ref(false),
			Containers: []kubecore.Container{
				{
					Name:  string(b.Session.Kind),
					Image: conf.Session().Image(),
					Args: []string{
						"--NotebookApp.base_url=" + b.Session.Path,
						"--NotebookApp.token=",
					},
					Ports: []kubecore.ContainerPort{
						{Name: portName, ContainerPort: conf.Session().Port()},
					},
					Env: []kubecore.EnvVar{
						{Name: "WORKFLOW_ID", Value: b.Session.RunId},
					},
					VolumeMounts: []kubecore.VolumeMount{
						{Name: "workspace", MountPath: conf.Workspaces().Root()},
					},
					WorkingDir: b.Session.Workspace,
				},
			},
			Volumes: []kubecore.Volume{
				{
					Name: "workspace",
					VolumeSource: kubecore.VolumeSource{
						PersistentVolumeClaim: &kubecore.PersistentVolumeClaimVolumeSource{
							ClaimName: conf.Workspaces().ClaimName(),
						},
					},
				},
			},
		},
	}
}

func (b *Blueprint) BuildService(conf *cconf.WorkflowClusterConfig) *kubecore.Service {
	id := b.identifier()
	return &kubecore.Service{
		ObjectMeta: id.ObjectMeta(conf.Namespace()),
		Spec: kubecore.ServiceSpec{
			Selector: metasource.ToLabels(id),
			Ports: []kubecore.ServicePort{
				{Name: portName, Port: conf.Session().Port()},
			},
		},
	}
}

func (b *Blueprint) BuildIngress(conf *cconf.WorkflowClusterConfig) *kubenet.Ingress {
	id := b.identifier()
	pathType := kubenet.PathTypePrefix
	return &kubenet.Ingress{
		ObjectMeta: id.ObjectMeta(conf.Namespace()),
		Spec: kubenet.IngressSpec{
			Rules: []kubenet.IngressRule{
				{
					Host: conf.Session().IngressHost(),
					IngressRuleValue: kubenet.IngressRuleValue{
						HTTP: &kubenet.HTTPIngressRuleValue{
							Paths: []kubenet.HTTPIngressPath{
								{
									Path:     b.Session.Path,
									PathType: &pathType,
									Backend: kubenet.IngressBackend{
										Service: &kubenet.IngressServiceBackend{
											Name: b.Session.Name,
											Port: kubenet.ServiceBackendPort{
												Name: portName,
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

// Session is a handle on a provisioned interactive workload.
type Session interface {
	Name() string

	// Phase of the session pod, a snapshot at lookup time.
	Phase() cluster.PodPhase

	// Close deletes the pod, the service and the ingress.
	// Resources already gone are not an error.
	Close() error
}

type session struct {
	name  string
	phase cluster.PodPhase

	closers []func() error
}

func (s *session) Name() string {
	return s.name
}

func (s *session) Phase() cluster.PodPhase {
	return s.phase
}

func (s *session) Close() error {
	var errs []error
	for _, close := range s.closers {
		if err := close(); err != nil && !k8serrors.AsMissingError(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Spawn materializes a session: pod, service, ingress.
//
// On failure the already created resources are left for the caller to
// reclaim with Find + Close.
func Spawn(
	ctx context.Context,
	clus cluster.Cluster,
	conf *cconf.WorkflowClusterConfig,
	b *Blueprint,
) (Session, error) {
	backoff := retry.Static(3 * time.Second)

	// sessions are usable once the pod is scheduled; readiness is
	// reported to the user from Phase, not awaited here.
	podProm := clus.NewPod(ctx, backoff, b.BuildPod(conf), cluster.PodHasBeenPending)
	svcProm := clus.NewService(ctx, backoff, b.BuildService(conf))
	ingProm := clus.NewIngress(ctx, backoff, b.BuildIngress(conf))

	s := &session{name: b.Session.Name}

	pod := <-podProm
	if pod.Value != nil {
		s.closers = append(s.closers, pod.Value.Close)
	}
	svc := <-svcProm
	if svc.Value != nil {
		s.closers = append(s.closers, svc.Value.Close)
	}
	ing := <-ingProm
	if ing.Value != nil {
		s.closers = append(s.closers, ing.Value.Close)
	}

	for _, err := range []error{pod.Err, svc.Err, ing.Err} {
		if err != nil {
			return s, err
		}
	}

	s.phase = pod.Value.Status()
	return s, nil
}

// Find looks up a session's resources by the deterministic name.
func Find(
	ctx context.Context,
	clus cluster.Cluster,
	name string,
) (Session, error) {
	backoff := retry.Static(3 * time.Second)

	pod := <-clus.GetPod(ctx, backoff, name, cluster.PodHasBeenPending)
	if pod.Err != nil {
		return nil, pod.Err
	}
	svc := <-clus.GetService(ctx, backoff, name)
	if svc.Err != nil {
		return nil, svc.Err
	}
	ing := <-clus.GetIngress(ctx, backoff, name)
	if ing.Err != nil {
		return nil, ing.Err
	}

	return &session{
		name:    name,
		phase:   pod.Value.Status(),
		closers: []func() error{pod.Value.Close, svc.Value.Close, ing.Value.Close},
	}, nil
}
