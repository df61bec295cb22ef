// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"strings"

	"k8s.io/client-go/tools/clientcmd"
)

// clusterName names the cluster serve talks to, for logs.
func clusterName(kubeconfig string) string {
	if kubeconfig == "" && os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "in-cluster"
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	loadingRules.ExplicitPath = kubeconfig
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})

	rawConfig, err := kubeConfig.RawConfig()
	if err != nil {
		return "unknown"
	}
	if rawConfig.CurrentContext == "" {
		return "default"
	}
	return shortClusterName(rawConfig.CurrentContext)
}

// shortClusterName strips provider decoration from a context name.
// Handles EKS ARNs, GKE contexts and kind clusters; anything else is
// returned as-is.
func shortClusterName(contextName string) string {
	switch {
	case strings.HasPrefix(contextName, "arn:aws:eks:"):
		if idx := strings.LastIndex(contextName, "/"); idx != -1 {
			return contextName[idx+1:]
		}
	case strings.HasPrefix(contextName, "gke_"):
		if parts := strings.Split(contextName, "_"); len(parts) >= 4 {
			return parts[len(parts)-1]
		}
	case strings.HasPrefix(contextName, "kind-"):
		return strings.TrimPrefix(contextName, "kind-")
	}
	return contextName
}
