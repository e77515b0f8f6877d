package kubeutil

import (
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// detect *kubernetes.Clientset.
//
// It searches kubeconfig from (in ascending priority)
//
// - `~/.kube/config`
//
// - environmental variable `KUBECONFIG`
//
// - the passed path (command line flag, may be empty)
//
// When no files are found from above, it tries to use in-cluster config.
func ConnectToK8s(kubeconfigFlag string) (*kubernetes.Clientset, error) {

	kubeconfig := ""

	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	if k := os.Getenv("KUBECONFIG"); k != "" {
		kubeconfig = k
	}

	if kubeconfigFlag != "" {
		kubeconfig = kubeconfigFlag
	}

	if kubeconfig != "" {
		stat, err := os.Stat(kubeconfig)
		if os.IsNotExist(err) || (err == nil && stat.IsDir()) {
			kubeconfig = ""
		}
	}

	var config *rest.Config
	var err error
	if kubeconfig == "" {
		// fallback: try in-cluster
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, err
	}

	return kubernetes.NewForConfig(config)
}
