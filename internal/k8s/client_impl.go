package k8s

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/giantswarm/kube-dbmigrate/internal/logging"
)

// kubernetesClient implements the Client interface using client-go.
type kubernetesClient struct {
	config *ClientConfig

	// One lazily built cluster connection per kube context.
	mu       sync.Mutex
	clusters map[string]*lazyValue[*cluster]

	kubeconfigData *clientcmdapi.Config
	currentContext string

	newExecutor executorFactory
}

// cluster holds the clients for a single kube context.
type cluster struct {
	clientset kubernetes.Interface

	// restConfig serves API requests; streamConfig is the same config
	// without a request timeout, used for exec streams.
	restConfig   *rest.Config
	streamConfig *rest.Config
}

// executorFactory creates the remotecommand executor for an exec request.
type executorFactory func(config *rest.Config, method string, url *url.URL) (remotecommand.Executor, error)

// ClientConfig holds configuration for the Kubernetes client.
type ClientConfig struct {
	// Kubeconfig settings
	KubeconfigPath string
	Context        string

	// Performance settings
	QPSLimit   float32
	BurstLimit int
	Timeout    time.Duration

	// Debug settings
	DebugMode bool

	// Logging
	Logger Logger
}

// Logger interface for client logging.
type Logger = logging.Logger

// NewClient creates a new Kubernetes client with the given configuration.
func NewClient(config *ClientConfig) (*kubernetesClient, error) {
	if config == nil {
		return nil, fmt.Errorf("client configuration is required")
	}

	if config.QPSLimit == 0 {
		config.QPSLimit = DefaultQPSLimit
	}
	if config.BurstLimit == 0 {
		config.BurstLimit = DefaultBurstLimit
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout * time.Second
	}
	if config.Logger == nil {
		config.Logger = logging.DefaultLogger()
	}

	client := &kubernetesClient{
		config:      config,
		clusters:    make(map[string]*lazyValue[*cluster]),
		newExecutor: remotecommand.NewSPDYExecutor,
	}

	if err := client.loadKubeconfig(); err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	if config.Context != "" {
		client.currentContext = config.Context
	} else {
		client.currentContext = client.kubeconfigData.CurrentContext
	}

	if _, exists := client.kubeconfigData.Contexts[client.currentContext]; !exists && client.currentContext != "" {
		return nil, fmt.Errorf("context %q does not exist in kubeconfig: %w", client.currentContext, ErrContextNotFound)
	}

	config.Logger.Debug("loaded kubeconfig", "context", client.currentContext, "contexts", len(client.kubeconfigData.Contexts))

	return client, nil
}

// loadKubeconfig loads the kubeconfig from the specified path or default locations.
func (c *kubernetesClient) loadKubeconfig() error {
	{
		kconf := os.Getenv("KUBECONFIG")
		if strings.HasPrefix(kconf, "~/") {
			uhd, _ := os.UserHomeDir()
			kconf = filepath.Join(uhd, kconf[2:])
		}

		if kconf != "" && c.config.KubeconfigPath == "" {
			c.config.KubeconfigPath = kconf
		}
	}

	rawConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		c.loadingRules(),
		&clientcmd.ConfigOverrides{},
	).RawConfig()
	if err != nil {
		return err
	}
	c.kubeconfigData = &rawConfig

	return nil
}

func (c *kubernetesClient) loadingRules() *clientcmd.ClientConfigLoadingRules {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if c.config.KubeconfigPath != "" {
		loadingRules.ExplicitPath = c.config.KubeconfigPath
	}
	return loadingRules
}

// clusterFor returns the cached cluster connection for contextName,
// building it on first use. An empty name means the current context.
func (c *kubernetesClient) clusterFor(contextName string) (*cluster, error) {
	if contextName == "" {
		contextName = c.currentContext
	}

	c.mu.Lock()
	lv, ok := c.clusters[contextName]
	if !ok {
		lv = &lazyValue[*cluster]{}
		c.clusters[contextName] = lv
	}
	c.mu.Unlock()

	return lv.Get(func() (*cluster, error) {
		return c.buildCluster(contextName)
	})
}

func (c *kubernetesClient) buildCluster(contextName string) (*cluster, error) {
	if _, exists := c.kubeconfigData.Contexts[contextName]; !exists {
		return nil, fmt.Errorf("context %q does not exist in kubeconfig: %w", contextName, ErrContextNotFound)
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		c.loadingRules(),
		&clientcmd.ConfigOverrides{CurrentContext: contextName},
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create rest config for context %q: %w", contextName, err)
	}

	restConfig.QPS = c.config.QPSLimit
	restConfig.Burst = c.config.BurstLimit

	streamConfig := rest.CopyConfig(restConfig)
	restConfig.Timeout = c.config.Timeout

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset for context %q: %w", contextName, err)
	}

	c.config.Logger.Debug("resolved kube context",
		logging.Context(contextName),
		logging.Host(restConfig.Host),
	)

	return &cluster{
		clientset:    clientset,
		restConfig:   restConfig,
		streamConfig: streamConfig,
	}, nil
}

// logOperation logs an operation for debugging and audit purposes.
func (c *kubernetesClient) logOperation(operation string, target Target, args ...any) {
	attrs := []any{
		logging.Operation(operation),
		logging.Context(target.Context),
		logging.Namespace(target.Namespace),
		logging.Pod(target.Pod),
	}
	c.config.Logger.Debug("kubernetes operation", append(attrs, args...)...)
}

// ContextManager implementation

// ListContexts returns all available Kubernetes contexts sorted by name.
func (c *kubernetesClient) ListContexts(ctx context.Context) ([]ContextInfo, error) {
	contexts := make([]ContextInfo, 0, len(c.kubeconfigData.Contexts))
	for contextName, contextInfo := range c.kubeconfigData.Contexts {
		contexts = append(contexts, ContextInfo{
			Name:      contextName,
			Cluster:   contextInfo.Cluster,
			User:      contextInfo.AuthInfo,
			Namespace: contextInfo.Namespace,
			Current:   contextName == c.currentContext,
		})
	}

	sort.Slice(contexts, func(i, j int) bool {
		return contexts[i].Name < contexts[j].Name
	})

	return contexts, nil
}

// CurrentContext returns the context used when a Target leaves Context empty.
func (c *kubernetesClient) CurrentContext() string {
	return c.currentContext
}

// ResolveContext validates contextName and prepares its clientset.
func (c *kubernetesClient) ResolveContext(ctx context.Context, contextName string) (*ContextInfo, error) {
	if contextName == "" {
		contextName = c.currentContext
	}

	contextInfo, exists := c.kubeconfigData.Contexts[contextName]
	if !exists {
		return nil, fmt.Errorf("context %q does not exist in kubeconfig: %w", contextName, ErrContextNotFound)
	}

	if _, err := c.clusterFor(contextName); err != nil {
		return nil, err
	}

	return &ContextInfo{
		Name:      contextName,
		Cluster:   contextInfo.Cluster,
		User:      contextInfo.AuthInfo,
		Namespace: contextInfo.Namespace,
		Current:   contextName == c.currentContext,
	}, nil
}
