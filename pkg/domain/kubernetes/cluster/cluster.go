package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/reanahub/reana-workflow-controller/pkg/domain/errors/k8serrors"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/retry"
	kubeapps "k8s.io/api/apps/v1"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubenet "k8s.io/api/networking/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapiresource "k8s.io/apimachinery/pkg/api/resource"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"
)

// subset of k8s.Clientset
type K8sClient interface {
	GetService(ctx context.Context, namespace string, svcname string) (*kubecore.Service, error)
	CreateService(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error)
	DeleteService(ctx context.Context, namespace string, svcname string) error

	GetDeployment(ctx context.Context, namespace string, deplname string) (*kubeapps.Deployment, error)
	CreateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error)
	DeleteDeployment(ctx context.Context, namespace string, deplname string) error

	GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error)
	CreateJob(ctx context.Context, namespace string, spec *kubebatch.Job) (*kubebatch.Job, error)
	DeleteJob(ctx context.Context, namespace string, name string) error

	GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error)
	CreatePod(ctx context.Context, namespace string, spec *kubecore.Pod) (*kubecore.Pod, error)
	DeletePod(ctx context.Context, namespace string, name string) error
	FindPods(ctx context.Context, namespace string, labelSelector LabelSelector) ([]kubecore.Pod, error)

	GetIngress(ctx context.Context, namespace string, name string) (*kubenet.Ingress, error)
	CreateIngress(ctx context.Context, namespace string, ing *kubenet.Ingress) (*kubenet.Ingress, error)
	DeleteIngress(ctx context.Context, namespace string, name string) error

	GetPVC(ctx context.Context, namespace string, pvcname string) (*kubecore.PersistentVolumeClaim, error)

	Log(ctx context.Context, namespace string, podname string, container string) (io.ReadCloser, error)
}

// A wrapper for the type k8s.Clientset; because it does not prefer method chain-style invocations of that type.
type k8sClient struct {
	client *k8s.Clientset
}

// type check: k8sClient implements K8sClient
var _ K8sClient = &k8sClient{}

func (k *k8sClient) GetService(ctx context.Context, namespace string, svcname string) (*kubecore.Service, error) {
	return k.client.CoreV1().Services(namespace).Get(ctx, svcname, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateService(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error) {
	return k.client.CoreV1().Services(namespace).Create(ctx, svc, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) DeleteService(ctx context.Context, namespace string, svcname string) error {
	return k.client.CoreV1().Services(namespace).Delete(ctx, svcname, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) GetDeployment(ctx context.Context, namespace string, deplname string) (*kubeapps.Deployment, error) {
	return k.client.AppsV1().Deployments(namespace).Get(ctx, deplname, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
	return k.client.AppsV1().Deployments(namespace).Create(ctx, depl, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) DeleteDeployment(ctx context.Context, namespace string, deplname string) error {
	return k.client.AppsV1().Deployments(namespace).Delete(ctx, deplname, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Create(ctx, job, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) DeleteJob(ctx context.Context, namespace string, name string) error {
	foreground := kubeapimeta.DeletePropagationForeground
	zero := int64(0)
	return k.client.BatchV1().Jobs(namespace).Delete(ctx, name, kubeapimeta.DeleteOptions{
		GracePeriodSeconds: &zero,
		PropagationPolicy:  &foreground,
	})
}

func (k *k8sClient) GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error) {
	return k.client.CoreV1().Pods(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreatePod(ctx context.Context, namespace string, pod *kubecore.Pod) (*kubecore.Pod, error) {
	return k.client.CoreV1().Pods(namespace).Create(ctx, pod, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) DeletePod(ctx context.Context, namespace string, podname string) error {
	return k.client.CoreV1().Pods(namespace).Delete(ctx, podname, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) FindPods(ctx context.Context, namespace string, labels LabelSelector) ([]kubecore.Pod, error) {
	resp, err := k.client.CoreV1().Pods(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: labels.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *k8sClient) GetIngress(ctx context.Context, namespace string, name string) (*kubenet.Ingress, error) {
	return k.client.NetworkingV1().Ingresses(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateIngress(ctx context.Context, namespace string, ing *kubenet.Ingress) (*kubenet.Ingress, error) {
	return k.client.NetworkingV1().Ingresses(namespace).Create(ctx, ing, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) DeleteIngress(ctx context.Context, namespace string, name string) error {
	return k.client.NetworkingV1().Ingresses(namespace).Delete(ctx, name, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) GetPVC(ctx context.Context, namespace string, pvcname string) (*kubecore.PersistentVolumeClaim, error) {
	return k.client.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, pvcname, kubeapimeta.GetOptions{})
}

// Log opens a log stream of a container. The stream ends at the current
// tail of the log; it is read for capture, not for following.
func (k *k8sClient) Log(ctx context.Context, namespace string, podname string, container string) (io.ReadCloser, error) {
	return k.client.
		CoreV1().
		Pods(namespace).
		GetLogs(podname, &kubecore.PodLogOptions{Container: container}).
		Stream(ctx)
}

func WrapK8sClient(c *k8s.Clientset) K8sClient {
	return &k8sClient{client: c}
}

type service struct {
	resource *kubecore.Service
	domain   string
	close    func() error
}

// Abstraction of k8s Service
type Service interface {
	Namespace() string
	Name() string

	// get service domain name.
	Host() string

	// get service cluster IP
	IP() string

	// get named port number.
	Port(name string) int32

	// release resources.
	//
	// Delete service.
	Close() error
}

func (s *service) Namespace() string {
	return s.resource.GetNamespace()
}

func (s *service) Name() string {
	return s.resource.GetName()
}

func (s *service) Host() string {
	return fmt.Sprintf("%s.%s.svc.%s", s.Name(), s.Namespace(), s.domain)
}

func (s *service) IP() string {
	return s.resource.Spec.ClusterIP
}

// Get port number named as parameter `name`
//
// If not found, return `0`.
func (s *service) Port(name string) int32 {
	for _, p := range s.resource.Spec.Ports {
		if p.Name == name {
			return p.Port
		}
	}
	return 0
}

func (s *service) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

type deployment struct {
	resource *kubeapps.Deployment
	onClose  func() error
}

// Abstraction of k8s Deployment
type Deployment interface {
	Name() string
	Namespace() string

	// how many replicas are available now.
	AvailableReplicas() int32

	// release resources.
	//
	// Delete deployment and related pods
	Close() error
}

func (d *deployment) Namespace() string {
	return d.resource.GetNamespace()
}

func (d *deployment) Name() string {
	return d.resource.GetName()
}

func (d *deployment) AvailableReplicas() int32 {
	return d.resource.Status.AvailableReplicas
}

func (d *deployment) Close() error {
	if d.onClose == nil {
		return nil
	}
	return d.onClose()
}

// Abstraction of k8s Ingress
type Ingress interface {
	Name() string
	Namespace() string

	// release resources.
	//
	// Delete ingress.
	Close() error
}

type ingress struct {
	resource *kubenet.Ingress
	onClose  func() error
}

func (i *ingress) Name() string {
	return i.resource.GetName()
}

func (i *ingress) Namespace() string {
	return i.resource.GetNamespace()
}

func (i *ingress) Close() error {
	if i.onClose == nil {
		return nil
	}
	return i.onClose()
}

// Abstraction of Persistent Volume Claim.
//
// Claims are looked up only; the shared workspace volume is provisioned
// out of band and never deleted from here.
type PVC interface {
	Name() string
	Namespace() string

	// Capacity in claim.
	ClaimedCapacity() kubeapiresource.Quantity
}

type pvc struct {
	resource *kubecore.PersistentVolumeClaim
}

func (p *pvc) Name() string {
	return p.resource.GetName()
}

func (p *pvc) Namespace() string {
	return p.resource.GetNamespace()
}

func (p *pvc) ClaimedCapacity() kubeapiresource.Quantity {
	return p.resource.Spec.Resources.Requests["storage"]
}

type JobStatus string

const (
	// no pods have been started.
	Pending JobStatus = "Pending"

	// at least one pod has started, and the job has not completed.
	Running JobStatus = "Running"

	// the job is succeeded.
	Succeeded JobStatus = "Succeeded"

	// the job is failed.
	Failed JobStatus = "Failed"
)

// abstraction of k8s job.
type Job interface {
	// the name of the job
	Name() string

	// the namespace where the job is placed in
	Namespace() string

	// how does the job progress, at least
	//
	// This value is just a SNAPSHOT of the job when you get the instance.
	// To refresh, you should get a new instance of `Job` with `Cluster.GetJob`.
	Status() JobStatus

	// ExitCode returns the exit code of the named container.
	//
	// # Return
	//
	// - exitCode : the exit code of the container.
	//
	// - reason: the reason of the termination.
	//
	// - ok : true if the container has terminated, false otherwise.
	ExitCode(container string) (uint8, string, bool)

	// Log opens the log stream of the named container in the job's pod.
	Log(ctx context.Context, containerName string) (io.ReadCloser, error)

	// destroy the job. If the job is running or pending, it can be aborted.
	Close() error
}

type job struct {
	job    *kubebatch.Job
	pods   []kubecore.Pod
	client K8sClient
	close  func() error
}

var _ Job = &job{}

func (j *job) Name() string {
	return j.job.Name
}

func (j *job) Namespace() string {
	return j.job.Namespace
}

func (j *job) Status() JobStatus {
	for _, sc := range j.job.Status.Conditions {
		if sc.Status != "True" {
			continue
		}
		switch sc.Type {
		case kubebatch.JobComplete:
			return Succeeded
		case kubebatch.JobFailed:
			return Failed
		}
	}

	for _, p := range j.pods {
		// if at least one pod has been run, the job has been run.
		switch p.Status.Phase {
		case kubecore.PodRunning, kubecore.PodSucceeded, kubecore.PodFailed:
			return Running
		}
	}

	return Pending
}

func (j *job) ExitCode(container string) (uint8, string, bool) {
	for _, p := range j.pods {
		for _, c := range p.Status.ContainerStatuses {
			if c.Name != container {
				continue
			}
			if term := c.State.Terminated; term != nil {
				return uint8(term.ExitCode), term.Reason, true
			}
			break
		}
	}
	return 0, "", false
}

func (j *job) Log(ctx context.Context, containerName string) (io.ReadCloser, error) {
	if len(j.pods) == 0 {
		return nil, errors.New("no pods")
	}
	pod := j.pods[0]
	return j.client.Log(ctx, pod.Namespace, pod.Name, containerName)
}

func (j *job) Close() error {
	if j.close == nil {
		return nil
	}
	return j.close()
}

type PodPhase kubecore.PodPhase

var (
	PodPending   PodPhase = PodPhase(kubecore.PodPending)
	PodRunning   PodPhase = PodPhase(kubecore.PodRunning)
	PodSucceeded PodPhase = PodPhase(kubecore.PodSucceeded)
	PodFailed    PodPhase = PodPhase(kubecore.PodFailed)
	PodUnknown   PodPhase = PodPhase(kubecore.PodUnknown)
)

type Pod interface {
	Name() string
	Status() PodPhase
	Host() string
	Ports() map[string]int32
	Close() error
}

type pod struct {
	description kubecore.Pod
	onClose     func() error
}

func (p *pod) Name() string {
	return p.description.Name
}

func (p *pod) Status() PodPhase {
	return PodPhase(p.description.Status.Phase)
}

func (p *pod) Host() string {
	return p.description.Status.PodIP
}

func (p *pod) Ports() map[string]int32 {
	ports := map[string]int32{}
	for _, c := range p.description.Spec.Containers {
		for _, pt := range c.Ports {
			ports[pt.Name] = pt.ContainerPort
		}
	}
	return ports
}

func (p *pod) Close() error {
	if p.onClose == nil {
		return nil
	}
	return p.onClose()
}

// Cluster creates and inspects k8s resources in a single namespace.
//
// Each method returns a retry.Promise resolved when the resource exists
// and satisfies the given requirements (or the defaults).
//
// Promises may fail with:
//
//   - k8serrors.ErrConflict: the resource is already created (New* only).
//
//   - k8serrors.ErrMissing: the resource is not found (Get*), or went
//     missing after creation before meeting requirements.
//
//   - other errors come from Requirements and context.Context.
//
// Whether or not the Promise has Error, the resource can exist.
// So, you may need to Close() it.
type Cluster interface {
	Namespace() string
	Domain() string

	NewService(context.Context, retry.Backoff, *kubecore.Service, ...Requirement[*kubecore.Service]) retry.Promise[Service]
	GetService(context.Context, retry.Backoff, string, ...Requirement[*kubecore.Service]) retry.Promise[Service]

	NewDeployment(context.Context, retry.Backoff, *kubeapps.Deployment, ...Requirement[*kubeapps.Deployment]) retry.Promise[Deployment]
	GetDeployment(context.Context, retry.Backoff, string, ...Requirement[*kubeapps.Deployment]) retry.Promise[Deployment]

	NewJob(context.Context, retry.Backoff, *kubebatch.Job, ...Requirement[*kubebatch.Job]) retry.Promise[Job]
	GetJob(context.Context, retry.Backoff, string, ...Requirement[*kubebatch.Job]) retry.Promise[Job]

	NewPod(context.Context, retry.Backoff, *kubecore.Pod, ...Requirement[*kubecore.Pod]) retry.Promise[Pod]
	GetPod(context.Context, retry.Backoff, string, ...Requirement[*kubecore.Pod]) retry.Promise[Pod]

	NewIngress(context.Context, retry.Backoff, *kubenet.Ingress, ...Requirement[*kubenet.Ingress]) retry.Promise[Ingress]
	GetIngress(context.Context, retry.Backoff, string, ...Requirement[*kubenet.Ingress]) retry.Promise[Ingress]

	// GetPVC looks up an existing claim. There is no New counterpart;
	// the workspace volume is not managed from here.
	GetPVC(context.Context, retry.Backoff, string, ...Requirement[*kubecore.PersistentVolumeClaim]) retry.Promise[PVC]
}

// Requirement is a function that checks if creating k8s resource satisfies the requirement.
//
// # Return
//
// - error: When the value satisfies the requirement, return nil.
// If it is waiting to satisfy the requirement, return `retry.ErrRetry`.
// Otherwise, return error.
type Requirement[T any] func(value T) error

func satisfyAll[T any](value T, req []Requirement[T]) error {
	for _, r := range req {
		if err := r(value); err != nil {
			return err
		}
	}
	return nil
}

type k8sCluster struct {
	client    K8sClient
	namespace string
	domain    string
}

// type check: k8sCluster implements Cluster
var _ Cluster = &k8sCluster{}

// Attach kubernetes cluster.
//
// args:
//   - client: k8s clientset
//   - namespace: k8s namespace
//   - domain: k8s-internal domain name. If empty string is passed, it uses `"cluster.local"` as default.
func AttachCluster(client K8sClient, namespace string, domain string) Cluster {
	if domain == "" {
		domain = "cluster.local"
	}
	return &k8sCluster{client: client, namespace: namespace, domain: domain}
}

func (c *k8sCluster) Namespace() string {
	return c.namespace
}

func (c *k8sCluster) Domain() string {
	return c.domain
}

var ServiceIsReady Requirement[*kubecore.Service] = func(value *kubecore.Service) error {
	if value.Spec.ClusterIP != "" {
		return nil
	}
	return retry.ErrRetry
}

// ServiceHasBeenCreated: existence is enough. For teardown paths, where
// readiness is irrelevant.
var ServiceHasBeenCreated Requirement[*kubecore.Service] = func(value *kubecore.Service) error {
	return nil
}

func (c *k8sCluster) NewService(
	ctx context.Context, backoff retry.Backoff, svcconf *kubecore.Service,
	requirements ...Requirement[*kubecore.Service],
) retry.Promise[Service] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubecore.Service]{ServiceIsReady}
	}

	select {
	case <-ctx.Done():
		return retry.Failed[Service](ctx.Err())
	default:
	}

	svc, err := c.client.CreateService(ctx, c.namespace, svcconf)
	if err != nil {
		if kubeerr.IsAlreadyExists(err) {
			return retry.Failed[Service](k8serrors.NewConflictCausedBy("", err))
		}
		return retry.Failed[Service](err)
	}
	_close := func() error {
		return c.client.DeleteService(
			context.Background(), // close should run if given has closed.
			c.namespace,
			svcconf.ObjectMeta.Name,
		)
	}
	if err := satisfyAll(svc, requirements); err == nil {
		return retry.Ok[Service](&service{resource: svc, domain: c.domain, close: _close})
	} else if !errors.Is(err, retry.ErrRetry) {
		return retry.Failed[Service](err)
	}

	return c.GetService(ctx, backoff, svcconf.ObjectMeta.Name, requirements...)
}

func (c *k8sCluster) GetService(
	ctx context.Context, backoff retry.Backoff, name string,
	requirements ...Requirement[*kubecore.Service],
) retry.Promise[Service] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubecore.Service]{ServiceIsReady}
	}
	_close := func() error {
		return c.client.DeleteService(context.Background(), c.namespace, name)
	}

	return retry.Go(ctx, backoff, func() (Service, error) {
		svc, err := c.client.GetService(ctx, c.namespace, name)
		ret := &service{resource: svc, domain: c.domain, close: _close}
		if err != nil {
			if kubeerr.IsNotFound(err) {
				return ret, k8serrors.NewMissingCausedBy("", err)
			}
			return ret, err
		}
		return ret, satisfyAll(svc, requirements)
	})
}

var EnoughReplicas Requirement[*kubeapps.Deployment] = func(value *kubeapps.Deployment) error {
	replicas := int32(1)
	if value.Spec.Replicas != nil {
		replicas = *value.Spec.Replicas
	}
	if replicas <= value.Status.AvailableReplicas {
		return nil
	}
	return retry.ErrRetry
}

var DeploymentHasBeenCreated Requirement[*kubeapps.Deployment] = func(value *kubeapps.Deployment) error {
	return nil
}

func (c *k8sCluster) NewDeployment(
	ctx context.Context, backoff retry.Backoff, dplconf *kubeapps.Deployment,
	requirements ...Requirement[*kubeapps.Deployment],
) retry.Promise[Deployment] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubeapps.Deployment]{EnoughReplicas}
	}

	select {
	case <-ctx.Done():
		return retry.Failed[Deployment](ctx.Err())
	default:
	}

	dpl, err := c.client.CreateDeployment(ctx, c.namespace, dplconf)
	if err != nil {
		if kubeerr.IsAlreadyExists(err) {
			return retry.Failed[Deployment](k8serrors.NewConflictCausedBy("", err))
		}
		return retry.Failed[Deployment](err)
	}
	_close := func() error {
		return c.client.DeleteDeployment(
			context.Background(), // close should run if given has closed.
			c.namespace,
			dplconf.ObjectMeta.Name,
		)
	}

	if err := satisfyAll(dpl, requirements); err == nil {
		return retry.Ok[Deployment](&deployment{resource: dpl, onClose: _close})
	} else if !errors.Is(err, retry.ErrRetry) {
		return retry.Failed[Deployment](err)
	}

	return c.GetDeployment(ctx, backoff, dplconf.ObjectMeta.Name, requirements...)
}

func (c *k8sCluster) GetDeployment(
	ctx context.Context, backoff retry.Backoff, name string,
	requirements ...Requirement[*kubeapps.Deployment],
) retry.Promise[Deployment] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubeapps.Deployment]{EnoughReplicas}
	}
	_close := func() error {
		return c.client.DeleteDeployment(context.Background(), c.namespace, name)
	}

	return retry.Go(ctx, backoff, func() (Deployment, error) {
		dpl, err := c.client.GetDeployment(ctx, c.namespace, name)
		ret := &deployment{resource: dpl, onClose: _close}
		if err != nil {
			if kubeerr.IsNotFound(err) {
				return ret, k8serrors.NewMissingCausedBy("", err)
			}
			return ret, err
		}
		return ret, satisfyAll(dpl, requirements)
	})
}

var JobHasBeenCreated Requirement[*kubebatch.Job] = func(value *kubebatch.Job) error {
	return nil
}

func (c *k8sCluster) NewJob(
	ctx context.Context, p retry.Backoff, j *kubebatch.Job,
	requirements ...Requirement[*kubebatch.Job],
) retry.Promise[Job] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubebatch.Job]{JobHasBeenCreated}
	}

	select {
	case <-ctx.Done():
		return retry.Failed[Job](ctx.Err())
	default:
	}
	_job, err := c.client.CreateJob(ctx, c.namespace, j)
	if err != nil {
		if kubeerr.IsAlreadyExists(err) {
			return retry.Failed[Job](k8serrors.NewConflictCausedBy("", err))
		}
		return retry.Failed[Job](err)
	}
	_close := func() error {
		return c.client.DeleteJob(
			context.Background(), c.namespace, _job.ObjectMeta.Name,
		)
	}

	if err := satisfyAll(_job, requirements); err == nil {
		pods, err := c.client.FindPods(
			ctx, c.namespace,
			LabelSelector(_job.Spec.Selector.MatchLabels),
		)
		if err != nil {
			pods = []kubecore.Pod{}
		}
		return retry.Ok[Job](&job{job: _job, pods: pods, client: c.client, close: _close})
	} else if !errors.Is(err, retry.ErrRetry) {
		return retry.Failed[Job](err)
	}

	return c.GetJob(ctx, p, _job.ObjectMeta.Name, requirements...)
}

func (c *k8sCluster) GetJob(
	ctx context.Context, p retry.Backoff, name string,
	requirements ...Requirement[*kubebatch.Job],
) retry.Promise[Job] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubebatch.Job]{JobHasBeenCreated}
	}
	_close := func() error {
		return c.client.DeleteJob(context.Background(), c.namespace, name)
	}

	return retry.Go(ctx, p, func() (Job, error) {
		_job, err := c.client.GetJob(ctx, c.namespace, name)
		ret := &job{
			job: _job, close: _close, client: c.client,
		}

		if err != nil {
			if kubeerr.IsNotFound(err) {
				return ret, k8serrors.NewMissingCausedBy("", err)
			}
			return ret, err
		}

		if err := satisfyAll(_job, requirements); err != nil {
			return ret, err
		}

		pods, err := c.client.FindPods(
			ctx, c.namespace,
			LabelSelector(_job.Spec.Selector.MatchLabels),
		)
		if err == nil {
			ret.pods = pods
		}
		return ret, nil
	})
}

var PodHasBeenRunning Requirement[*kubecore.Pod] = func(p *kubecore.Pod) error {
	switch p.Status.Phase {
	case kubecore.PodRunning, kubecore.PodFailed, kubecore.PodSucceeded:
		return nil
	default:
		return retry.ErrRetry
	}
}

var PodHasBeenPending Requirement[*kubecore.Pod] = func(p *kubecore.Pod) error {
	switch p.Status.Phase {
	case kubecore.PodPending, kubecore.PodRunning, kubecore.PodFailed, kubecore.PodSucceeded:
		return nil
	default:
		return retry.ErrRetry
	}
}

func (c *k8sCluster) NewPod(
	ctx context.Context, r retry.Backoff, p *kubecore.Pod,
	requirements ...Requirement[*kubecore.Pod],
) retry.Promise[Pod] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubecore.Pod]{PodHasBeenRunning}
	}
	select {
	case <-ctx.Done():
		return retry.Failed[Pod](ctx.Err())
	default:
	}

	_pod, err := c.client.CreatePod(ctx, c.namespace, p)
	if err != nil {
		if kubeerr.IsAlreadyExists(err) {
			return retry.Failed[Pod](k8serrors.NewConflictCausedBy("", err))
		}
		return retry.Failed[Pod](err)
	}
	_close := func() error {
		return c.client.DeletePod(context.Background(), c.namespace, p.ObjectMeta.Name)
	}
	if err := satisfyAll(_pod, requirements); err == nil {
		return retry.Ok[Pod](&pod{description: *_pod, onClose: _close})
	} else if !errors.Is(err, retry.ErrRetry) {
		return retry.Failed[Pod](err)
	}

	return c.GetPod(ctx, r, _pod.ObjectMeta.Name, requirements...)
}

func (c *k8sCluster) GetPod(
	ctx context.Context, r retry.Backoff, name string,
	requirements ...Requirement[*kubecore.Pod],
) retry.Promise[Pod] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubecore.Pod]{PodHasBeenRunning}
	}
	_close := func() error {
		return c.client.DeletePod(context.Background(), c.namespace, name)
	}

	return retry.Go(ctx, r, func() (Pod, error) {
		_pod, err := c.client.GetPod(ctx, c.namespace, name)
		if err != nil {
			ret := &pod{onClose: _close}
			if kubeerr.IsNotFound(err) {
				return ret, k8serrors.NewMissingCausedBy("", err)
			}
			return ret, err
		}
		ret := &pod{description: *_pod, onClose: _close}
		return ret, satisfyAll(_pod, requirements)
	})
}

var IngressHasBeenCreated Requirement[*kubenet.Ingress] = func(value *kubenet.Ingress) error {
	return nil
}

func (c *k8sCluster) NewIngress(
	ctx context.Context, backoff retry.Backoff, ingconf *kubenet.Ingress,
	requirements ...Requirement[*kubenet.Ingress],
) retry.Promise[Ingress] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubenet.Ingress]{IngressHasBeenCreated}
	}

	select {
	case <-ctx.Done():
		return retry.Failed[Ingress](ctx.Err())
	default:
	}

	ing, err := c.client.CreateIngress(ctx, c.namespace, ingconf)
	if err != nil {
		if kubeerr.IsAlreadyExists(err) {
			return retry.Failed[Ingress](k8serrors.NewConflictCausedBy("", err))
		}
		return retry.Failed[Ingress](err)
	}
	_close := func() error {
		return c.client.DeleteIngress(context.Background(), c.namespace, ingconf.ObjectMeta.Name)
	}

	if err := satisfyAll(ing, requirements); err == nil {
		return retry.Ok[Ingress](&ingress{resource: ing, onClose: _close})
	} else if !errors.Is(err, retry.ErrRetry) {
		return retry.Failed[Ingress](err)
	}

	return c.GetIngress(ctx, backoff, ingconf.ObjectMeta.Name, requirements...)
}

func (c *k8sCluster) GetIngress(
	ctx context.Context, backoff retry.Backoff, name string,
	requirements ...Requirement[*kubenet.Ingress],
) retry.Promise[Ingress] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubenet.Ingress]{IngressHasBeenCreated}
	}
	_close := func() error {
		return c.client.DeleteIngress(context.Background(), c.namespace, name)
	}

	return retry.Go(ctx, backoff, func() (Ingress, error) {
		ing, err := c.client.GetIngress(ctx, c.namespace, name)
		ret := &ingress{resource: ing, onClose: _close}
		if err != nil {
			if kubeerr.IsNotFound(err) {
				return ret, k8serrors.NewMissingCausedBy("", err)
			}
			return ret, err
		}
		return ret, satisfyAll(ing, requirements)
	})
}

var PVCIsBound Requirement[*kubecore.PersistentVolumeClaim] = func(value *kubecore.PersistentVolumeClaim) error {
	if value.Status.Phase == kubecore.ClaimBound {
		return nil
	}
	return retry.ErrRetry
}

func (c *k8sCluster) GetPVC(
	ctx context.Context, backoff retry.Backoff, pvcname string,
	requirements ...Requirement[*kubecore.PersistentVolumeClaim],
) retry.Promise[PVC] {
	if len(requirements) == 0 {
		requirements = []Requirement[*kubecore.PersistentVolumeClaim]{PVCIsBound}
	}

	return retry.Go(ctx, backoff, func() (PVC, error) {
		_pvc, err := c.client.GetPVC(ctx, c.namespace, pvcname)
		ret := &pvc{resource: _pvc}
		if err != nil {
			if kubeerr.IsNotFound(err) {
				return ret, k8serrors.NewMissingCausedBy("", err)
			}
			return ret, err
		}
		return ret, satisfyAll(_pvc, requirements)
	})
}
