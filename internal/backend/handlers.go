// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/monadic/snapdiff/internal/storage"
	"github.com/monadic/snapdiff/pkg/diffapi"
)

// maxConcurrentBlobs bounds parallel storage reads per request.
const maxConcurrentBlobs = 4

// param returns the unescaped URL parameter key.
func param(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// resourceFor maps a catalog group and kind to the resource to query. Catalog
// groups may carry a "/version" suffix for display; only the API group part
// is used. The resource is the kind with an "s" appended.
func resourceFor(group, version, kind string) schema.GroupVersionResource {
	apiGroup, _, _ := strings.Cut(group, "/")
	return schema.GroupVersionResource{Group: apiGroup, Version: version, Resource: kind + "s"}
}

func (s *Server) requireSupportedKind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		group := param(r, "group")
		kind := param(r, "kind")
		if !slices.Contains(s.catalog.SupportedKinds(group), kind) {
			http.Error(w, "Unsupported resource kind", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) resourceClient(r *http.Request) dynamic.ResourceInterface {
	gvr := resourceFor(param(r, "group"), param(r, "version"), param(r, "kind"))
	return s.dyn.Resource(gvr).Namespace(param(r, "namespace"))
}

func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	namespaces, err := s.kube.CoreV1().Namespaces().List(r.Context(), metav1.ListOptions{})
	if err != nil {
		s.fail(w, r, "list namespaces", err)
		return
	}
	s.writeJSON(w, namespaces)
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	list, err := s.resourceClient(r).List(r.Context(), metav1.ListOptions{})
	if err != nil {
		s.fail(w, r, "list resources", err)
		return
	}
	b, err := list.MarshalJSON()
	if err != nil {
		s.fail(w, r, "marshal resources", err)
		return
	}
	writeRaw(w, b)
}

func (s *Server) readResource(w http.ResponseWriter, r *http.Request) {
	obj, err := s.resourceClient(r).Get(r.Context(), param(r, "name"), metav1.GetOptions{})
	if err != nil {
		s.fail(w, r, "get resource", err)
		return
	}
	b, err := obj.MarshalJSON()
	if err != nil {
		s.fail(w, r, "marshal resource", err)
		return
	}
	writeRaw(w, b)
}

func (s *Server) listArtifacts(w http.ResponseWriter, r *http.Request) {
	obj, err := s.resourceClient(r).Get(r.Context(), param(r, "name"), metav1.GetOptions{})
	if err != nil {
		s.fail(w, r, "get resource", err)
		return
	}

	bundle, err := s.loadBundle(r.Context(), ReadStatus(obj))
	if err != nil {
		s.fail(w, r, "load artifacts", err)
		return
	}
	s.writeJSON(w, bundle)
}

// loadBundle reads every referenced blob concurrently. Blobs that cannot be
// read are left out of the bundle; only cancellation fails the load.
func (s *Server) loadBundle(ctx context.Context, refs ArtifactRefs) (*diffapi.Bundle, error) {
	encoded := make(map[diffapi.Field]*string, len(refs.URLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBlobs)

	for field, ref := range refs.URLs {
		out := new(string)
		encoded[field] = out
		g.Go(func() error {
			data, err := s.store.Get(gctx, ref)
			switch {
			case err == nil:
				*out = base64.StdEncoding.EncodeToString(data)
				s.metrics.blobLoads.WithLabelValues(blobLoaded).Inc()
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return err
			case errors.Is(err, storage.ErrNotFound):
				s.metrics.blobLoads.WithLabelValues(blobMissing).Inc()
				s.logger.Debug("artifact blob missing", zap.String("field", string(field)), zap.String("url", ref))
			default:
				s.metrics.blobLoads.WithLabelValues(blobFailed).Inc()
				s.logger.Warn("artifact blob unreadable", zap.String("field", string(field)), zap.String("url", ref), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := &diffapi.Bundle{DiffAmount: refs.DiffAmount, HTMLDiffAmount: refs.HTMLDiffAmount}
	for field, v := range encoded {
		if *v == "" {
			continue
		}
		switch field {
		case diffapi.FieldScreenshotDiff:
			b.ScreenshotDiff = *v
		case diffapi.FieldBaseline:
			b.Baseline = *v
		case diffapi.FieldTarget:
			b.Target = *v
		case diffapi.FieldHTMLDiff:
			b.HTMLDiff = *v
		case diffapi.FieldBaselineHTML:
			b.BaselineHTML = *v
		case diffapi.FieldTargetHTML:
			b.TargetHTML = *v
		}
	}
	return b, nil
}

// fail maps a Kubernetes or storage error to a status code and logs it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case apierrors.IsNotFound(err):
		http.NotFound(w, r)
	case apierrors.IsForbidden(err):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, context.Canceled):
		s.logger.Debug("client closed connection", zap.String("op", op))
	default:
		s.logger.Error(op+" failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal response failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeRaw(w, b)
}

func writeRaw(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
