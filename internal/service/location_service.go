package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/csform-next/internal/config"
	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/models"

	"github.com/meilisearch/meilisearch-go"
)

// Location 行政区划条目
type Location struct {
	Barangay         string `json:"brgy"`
	CityMunicipality string `json:"city_municipality"`
	Province         string `json:"province"`
	Region           string `json:"region"`
}

// locationSearcher 检索后端的最小接口
type locationSearcher interface {
	SearchWithContext(ctx context.Context, query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

// LocationService 菲律宾行政区划检索服务
// 三级字段各自限定检索属性；结果按目标字段去重，
// 同名条目保留相关度最高的第一条
type LocationService struct {
	index locationSearcher
	limit int64
}

// NewLocationService 创建地点检索服务
func NewLocationService(cfg config.SearchConfig) *LocationService {
	client := meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))
	index := cfg.Index
	if index == "" {
		index = "baranggays"
	}
	return &LocationService{
		index: client.Index(index),
		limit: 20,
	}
}

// NewLocationServiceWith 以给定检索后端创建服务
func NewLocationServiceWith(index locationSearcher) *LocationService {
	return &LocationService{index: index, limit: 20}
}

// Search 按类型检索行政区划
func (s *LocationService) Search(ctx context.Context, locationType, query string) ([]Location, error) {
	switch locationType {
	case constants.LocationTypeBarangay:
		return s.search(ctx, query, "brgy", func(l Location) string { return l.Barangay })
	case constants.LocationTypeCity:
		return s.search(ctx, query, "city_municipality", func(l Location) string { return l.CityMunicipality })
	case constants.LocationTypeProvince:
		return s.search(ctx, query, "province", func(l Location) string { return l.Province })
	default:
		return nil, nil
	}
}

func (s *LocationService) search(ctx context.Context, query, attribute string, keyOf func(Location) string) ([]Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	response, err := s.index.SearchWithContext(ctx, query, &meilisearch.SearchRequest{
		Limit:                s.limit,
		AttributesToSearchOn: []string{attribute},
	})
	if err != nil {
		logger.Warnw("location_search_failed", "attribute", attribute, "error", err)
		return nil, err
	}

	seen := make(map[string]bool, len(response.Hits))
	results := make([]Location, 0, len(response.Hits))
	for _, hit := range response.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var location Location
		if err := json.Unmarshal(raw, &location); err != nil {
			continue
		}
		key := strings.ToLower(keyOf(location))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, location)
	}
	return results, nil
}

// ApplyBarangay 选定描笼涯后级联填充市与省
func ApplyBarangay(form models.FormRecord, location Location) {
	form[constants.FieldBarangay] = location.Barangay
	form[constants.FieldCity] = location.CityMunicipality
	form[constants.FieldProvince] = location.Province
}

// ApplyCity 选定市后填充省并清空描笼涯，等待重新选择
func ApplyCity(form models.FormRecord, location Location) {
	form[constants.FieldBarangay] = ""
	form[constants.FieldCity] = location.CityMunicipality
	form[constants.FieldProvince] = location.Province
}

// ApplyProvince 选定省后清空下级字段
func ApplyProvince(form models.FormRecord, location Location) {
	form[constants.FieldBarangay] = ""
	form[constants.FieldCity] = ""
	form[constants.FieldProvince] = location.Province
}
