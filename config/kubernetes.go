// ABOUTME: This file handles Kubernetes client configuration for OAuth2 token storage
// ABOUTME: Provides in-cluster and out-of-cluster client setup with proper authentication

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// KubeconfigPath returns the configured kubeconfig or ~/.kube/config
func (k *KubernetesConfig) KubeconfigPath() string {
	if k.Kubeconfig != "" {
		return k.Kubeconfig
	}
	return filepath.Join(os.Getenv("HOME"), ".kube", "config")
}

// CreateKubernetesClient creates a Kubernetes client based on configuration
func (k *KubernetesConfig) CreateKubernetesClient() (kubernetes.Interface, error) {
	var restConfig *rest.Config
	var err error

	if k.InCluster {
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create in-cluster config: %w", err)
		}
	} else {
		restConfig, err = clientcmd.BuildConfigFromFlags("", k.KubeconfigPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create config from kubeconfig: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return clientset, nil
}
