package service

import (
	"context"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/hospital-admin-api/internal/dto"
	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

const navigationCachePrefix = "nav:"

type accessResolver interface {
	Resolve(ctx context.Context, userID string) (*AccessProfile, error)
}

type activeModuleLister interface {
	ListActive(ctx context.Context) ([]models.Module, error)
}

type activeDocumentLister interface {
	ListActive(ctx context.Context) ([]models.Document, error)
}

type moduleLinkLister interface {
	ListAll(ctx context.Context) ([]models.ModuleDocument, error)
}

// NavigationServiceParams groups constructor dependencies.
type NavigationServiceParams struct {
	Access    accessResolver
	Modules   activeModuleLister
	Documents activeDocumentLister
	Links     moduleLinkLister
	Cache     *CacheService
	Metrics   *MetricsService
	Logger    *zap.Logger
	CacheTTL  time.Duration
}

// NavigationService assembles the module to document tree a user may access.
type NavigationService struct {
	access    accessResolver
	modules   activeModuleLister
	documents activeDocumentLister
	links     moduleLinkLister
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cacheTTL  time.Duration
	group     singleflight.Group

	// generation advances on every Invalidate; builds started under an older one are not cached.
	generation atomic.Uint64
}

// NewNavigationService constructs a NavigationService.
func NewNavigationService(params NavigationServiceParams) *NavigationService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NavigationService{
		access:    params.Access,
		modules:   params.Modules,
		documents: params.Documents,
		links:     params.Links,
		cache:     params.Cache,
		metrics:   params.Metrics,
		logger:    logger,
		cacheTTL:  params.CacheTTL,
	}
}

// Build returns the navigation tree of userID and whether it came from cache.
// An unknown user yields a not-found error; every other gap yields an empty tree.
func (s *NavigationService) Build(ctx context.Context, userID string) ([]dto.NavigationModule, bool, error) {
	key := navigationCachePrefix + userID
	gen := s.generation.Load()
	var cached []dto.NavigationModule
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	// Callers arriving after an invalidation never join a build that started before it.
	flightKey := userID + "@" + strconv.FormatUint(gen, 10)
	result, err, _ := s.group.Do(flightKey, func() (interface{}, error) {
		return s.build(context.WithoutCancel(ctx), userID)
	})
	if err != nil {
		return nil, false, err
	}
	tree := result.([]dto.NavigationModule)
	s.store(context.WithoutCancel(ctx), key, gen, tree)
	return tree, false, nil
}

// store caches tree unless an invalidation happened since gen was read. Invalidate bumps the
// generation before clearing the cache, so a write racing the check is removed by one side.
func (s *NavigationService) store(ctx context.Context, key string, gen uint64, tree []dto.NavigationModule) {
	if s.generation.Load() != gen {
		return
	}
	_ = s.cache.Set(ctx, key, tree, s.cacheTTL)
	if s.generation.Load() != gen {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("failed to drop stale navigation entry", zap.String("key", key), zap.Error(err))
		}
	}
}

// Invalidate drops every cached navigation tree. Called after any write that can change one.
func (s *NavigationService) Invalidate(ctx context.Context) {
	if s == nil {
		return
	}
	s.generation.Add(1)
	if err := s.cache.Invalidate(ctx, navigationCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate navigation cache", zap.Error(err))
	}
}

func (s *NavigationService) build(ctx context.Context, userID string) ([]dto.NavigationModule, error) {
	start := time.Now()
	profile, err := s.access.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		modules []models.Module
		docs    []models.Document
		links   []models.ModuleDocument
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		modules, err = s.modules.ListActive(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		docs, err = s.documents.ListActive(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		links, err = s.links.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Internal(err, "failed to load navigation catalogue")
	}

	tree := assembleNavigation(modules, docs, links, profile)
	if profile.Superadmin {
		s.metrics.RecordSuperadminBypass("navigation")
	}
	s.metrics.ObserveNavigationBuild(profile.Superadmin, time.Since(start))
	return tree, nil
}

// assembleNavigation walks modules in display order and keeps, per module, the linked documents
// the profile may query. Modules left without documents are dropped. Inactive modules and
// documents never appear.
func assembleNavigation(modules []models.Module, docs []models.Document, links []models.ModuleDocument, profile *AccessProfile) []dto.NavigationModule {
	docsByID := make(map[string]models.Document, len(docs))
	for _, doc := range docs {
		if doc.Active {
			docsByID[doc.ID] = doc
		}
	}

	linked := make(map[string]map[string]struct{})
	for _, link := range links {
		set, ok := linked[link.ModuleID]
		if !ok {
			set = make(map[string]struct{})
			linked[link.ModuleID] = set
		}
		set[link.DocumentID] = struct{}{}
	}

	ordered := make([]models.Module, 0, len(modules))
	for _, m := range modules {
		if m.Active {
			ordered = append(ordered, m)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return lessByOrder(ordered[i].DisplayOrder, ordered[j].DisplayOrder, ordered[i].Name, ordered[j].Name, ordered[i].ID, ordered[j].ID)
	})

	tree := make([]dto.NavigationModule, 0, len(ordered))
	for _, module := range ordered {
		candidates := make([]models.Document, 0, len(linked[module.ID]))
		for docID := range linked[module.ID] {
			if doc, ok := docsByID[docID]; ok {
				candidates = append(candidates, doc)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return lessByOrder(candidates[i].DisplayOrder, candidates[j].DisplayOrder, candidates[i].Name, candidates[j].Name, candidates[i].ID, candidates[j].ID)
		})

		entries := make([]dto.NavigationDocument, 0, len(candidates))
		for _, doc := range candidates {
			var caps models.Capabilities
			if profile.Superadmin {
				caps = models.FullCapabilities()
			} else {
				granted, ok := profile.Permissions[doc.ID]
				if !ok || !granted.CanQuery {
					continue
				}
				caps = granted
			}
			entries = append(entries, dto.NavigationDocument{ID: doc.ID, Name: doc.Name, Path: doc.Path, Permissions: caps})
		}
		if len(entries) == 0 {
			continue
		}
		tree = append(tree, dto.NavigationModule{ID: module.ID, Name: module.Name, Documents: entries})
	}
	return tree
}

func lessByOrder(orderA, orderB int, nameA, nameB, idA, idB string) bool {
	if orderA != orderB {
		return orderA < orderB
	}
	if nameA != nameB {
		return nameA < nameB
	}
	return idA < idB
}
