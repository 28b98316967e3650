// Package assembler builds one CompositeRecord per identifier: a
// Relation-gated, fan-out sequence of dependent API calls, paginated
// video cataloguing, and independent neighbor discovery.
package assembler

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zaxtyson/spidercrawl/internal/core/domain"
	"github.com/zaxtyson/spidercrawl/internal/core/ports"
	"github.com/zaxtyson/spidercrawl/internal/logger"
	"github.com/zaxtyson/spidercrawl/internal/util"
	"github.com/zaxtyson/spidercrawl/pkg/pool"
)

const (
	pageSize           = 50
	maxFollowingsPages = 5
)

// videoBuffer accumulates one catalog's worth of entries before the caller
// copies them out into the final VideoCatalog. Pooled so that the
// high-churn per-page append doesn't force a fresh slice allocation for
// every one of the thousands of identifiers a worker pool assembles.
type videoBuffer struct {
	entries []domain.VideoEntry
}

func (b *videoBuffer) Reset() { b.entries = b.entries[:0] }

var videoBufferPool = pool.NewLitePool(func() *videoBuffer { return &videoBuffer{} })

// Endpoints names the five remote calls the assembler issues.
type Endpoints struct {
	Identity     string
	Relation     string
	Monetization string
	VideoCatalog string
	Followings   string
}

// DefaultEndpoints is the production endpoint set.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Identity:     "http://api.bilibili.com/x/space/acc/info",
		Relation:     "http://api.bilibili.com/x/relation/stat",
		Monetization: "https://api.bilibili.com/x/ugcpay-rank/elec/month/up",
		VideoCatalog: "http://api.bilibili.com/x/space/arc/search",
		Followings:   "http://api.bilibili.com/x/relation/followings",
	}
}

// Assembler implements ports.RecordAssembler.
type Assembler struct {
	client      ports.HTTPClient
	endpoints   Endpoints
	minFollower int64
	logger      *logger.StyledLogger
}

// New builds an Assembler against one HTTPClient.
func New(client ports.HTTPClient, endpoints Endpoints, minFollower int64, log *logger.StyledLogger) *Assembler {
	return &Assembler{client: client, endpoints: endpoints, minFollower: minFollower, logger: log}
}

// Assemble runs the Relation gate, then fans out Identity/Monetization/
// VideoCatalog. A nil, nil return means the popularity filter dropped the
// id (a processed success, not a failure); a non-nil error means the id
// should be marked failed.
func (a *Assembler) Assemble(ctx context.Context, id int64) (*domain.CompositeRecord, error) {
	relation, err := a.fetchRelation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("assembler: relation: %w", err)
	}
	if relation.Follower < a.minFollower {
		a.logger.Info("assembler: dropped below popularity threshold", "mid", id, "follower", relation.Follower)
		return nil, nil
	}

	var identity domain.Identity
	var monetization domain.Monetization
	var catalog domain.VideoCatalog

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		v, err := a.fetchIdentity(egCtx, id)
		if err != nil {
			return &IncompleteRecordError{Mid: id, Stage: "identity", Err: err}
		}
		identity = v
		return nil
	})
	eg.Go(func() error {
		v, err := a.fetchMonetization(egCtx, id)
		if err != nil {
			return &IncompleteRecordError{Mid: id, Stage: "monetization", Err: err}
		}
		monetization = v
		return nil
	})
	eg.Go(func() error {
		v, err := a.fetchVideoCatalog(egCtx, id)
		if err != nil {
			return &IncompleteRecordError{Mid: id, Stage: "video_catalog", Err: err}
		}
		catalog = v
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &domain.CompositeRecord{
		Mid:          id,
		Identity:     identity,
		Relation:     relation,
		Monetization: monetization,
		VideoCatalog: catalog,
	}, nil
}

func (a *Assembler) fetchRelation(ctx context.Context, id int64) (domain.Relation, error) {
	data, err := a.client.GetJSON(ctx, a.endpoints.Relation, map[string]string{"vmid": strconv.FormatInt(id, 10)})
	if err != nil {
		return domain.Relation{}, err
	}
	return domain.Relation{
		Follower:  toInt64(data["follower"]),
		Following: toInt64(data["following"]),
	}, nil
}

func (a *Assembler) fetchIdentity(ctx context.Context, id int64) (domain.Identity, error) {
	data, err := a.client.GetJSON(ctx, a.endpoints.Identity, map[string]string{"mid": strconv.FormatInt(id, 10)})
	if err != nil {
		return domain.Identity{}, err
	}

	school := domain.SchoolUnknown
	if sch, ok := data["school"].(map[string]interface{}); ok {
		if name := util.GetString(sch, "name"); name != "" {
			school = name
		}
	}

	vip, _ := data["vip"].(map[string]interface{})
	official, _ := data["official"].(map[string]interface{})

	return domain.Identity{
		Mid:            id,
		Name:           util.GetString(data, "name"),
		Sex:            util.GetString(data, "sex"),
		Face:           util.GetString(data, "face"),
		Sign:           util.GetString(data, "sign"),
		Level:          int(toInt64(data["level"])),
		VipType:        int(toInt64(vip["type"])),
		OfficialRole:   int(toInt64(official["role"])),
		OfficialTitle:  util.GetString(official, "title"),
		Silence:        int(toInt64(data["silence"])),
		SchoolName:     school,
		Birthday:       util.GetString(data, "birthday"),
		IsSeniorMember: toInt64(data["is_senior_member"]) != 0,
	}, nil
}

func (a *Assembler) fetchMonetization(ctx context.Context, id int64) (domain.Monetization, error) {
	data, err := a.client.GetJSON(ctx, a.endpoints.Monetization, map[string]string{"up_mid": strconv.FormatInt(id, 10)})
	if err != nil {
		return domain.Monetization{}, err
	}
	if len(data) == 0 {
		return domain.Monetization{Enabled: false}, nil
	}
	return domain.Monetization{
		Enabled: true,
		Month:   toInt64(data["count"]),
		Total:   toInt64(data["total_count"]),
	}, nil
}

// fetchVideoCatalog implements the pagination sub-protocol: a page=1,ps=1
// probe for the total, then ceil(total/50) pages at ps=50.
func (a *Assembler) fetchVideoCatalog(ctx context.Context, id int64) (domain.VideoCatalog, error) {
	probe, err := a.fetchVideoPage(ctx, id, 1, 1)
	if err != nil {
		return domain.VideoCatalog{}, err
	}
	total := pageCount(probe)
	pages := int(math.Ceil(float64(total) / float64(pageSize)))

	catalog := domain.VideoCatalog{Total: total}
	havePartitions := false

	buf := videoBufferPool.Get()
	defer videoBufferPool.Put(buf)

	for pn := 1; pn <= pages; pn++ {
		page, err := a.fetchVideoPage(ctx, id, pn, pageSize)
		if err != nil {
			return domain.VideoCatalog{}, err
		}

		list, _ := page["list"].(map[string]interface{})
		if !havePartitions {
			if tlist, ok := list["tlist"].(map[string]interface{}); ok {
				for _, raw := range tlist {
					part, ok := raw.(map[string]interface{})
					if !ok {
						continue
					}
					catalog.Partitions = append(catalog.Partitions, domain.VideoPartitionInfo{
						TypeID: toInt64(part["tid"]),
						Count:  toInt64(part["count"]),
					})
				}
				havePartitions = true
			}
		}

		vlist, _ := list["vlist"].([]interface{})
		for _, raw := range vlist {
			v, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}

			play, _ := util.GetFloat64(v, "play")
			comment := toInt64(v["comment"])
			danmaku := toInt64(v["video_review"])

			catalog.TotalPlay += play
			catalog.TotalComment += comment
			catalog.TotalDanmaku += danmaku

			rawLength := util.GetString(v, "length")
			buf.entries = append(buf.entries, domain.VideoEntry{
				Aid:          toInt64(v["aid"]),
				Bvid:         util.GetString(v, "bvid"),
				Title:        util.GetString(v, "title"),
				Comment:      comment,
				Play:         play,
				RawPlay:      v["play"],
				VideoReview:  danmaku,
				TypeID:       toInt64(v["typeid"]),
				Created:      toInt64(v["created"]),
				RawLength:    rawLength,
				DurationSecs: sumDuration(rawLength),
				IsUnionVideo: toInt64(v["is_union_video"]) != 0,
			})
		}
	}

	catalog.Videos = append(catalog.Videos, buf.entries...)
	return catalog, nil
}

func (a *Assembler) fetchVideoPage(ctx context.Context, id int64, page, size int) (map[string]interface{}, error) {
	return a.client.GetJSON(ctx, a.endpoints.VideoCatalog, map[string]string{
		"mid": strconv.FormatInt(id, 10),
		"pn":  strconv.Itoa(page),
		"ps":  strconv.Itoa(size),
	})
}

// Followings fetches up to 5 pages of the followings list, stopping early
// once a page returns fewer than the full page size, and returns the
// union of all discovered ids.
func (a *Assembler) Followings(ctx context.Context, id int64) ([]int64, error) {
	seen := make(map[int64]struct{})
	var ids []int64

	for pn := 1; pn <= maxFollowingsPages; pn++ {
		data, err := a.client.GetJSON(ctx, a.endpoints.Followings, map[string]string{
			"vmid": strconv.FormatInt(id, 10),
			"pn":   strconv.Itoa(pn),
			"ps":   strconv.Itoa(pageSize),
		})
		if err != nil {
			return nil, fmt.Errorf("assembler: followings page %d: %w", pn, err)
		}

		list, _ := data["list"].([]interface{})
		for _, raw := range list {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			mid := toInt64(entry["mid"])
			if _, dup := seen[mid]; dup {
				continue
			}
			seen[mid] = struct{}{}
			ids = append(ids, mid)
		}

		if len(list) < pageSize {
			break
		}
	}
	return ids, nil
}

func pageCount(page map[string]interface{}) int64 {
	info, _ := page["page"].(map[string]interface{})
	return toInt64(info["count"])
}

// sumDuration adds the raw components of a "MM:SS" length together.
// NOTE: this is MM+SS, not 60*MM+SS. Wrong as a duration, but the
// downstream corpus keys on the historical values, so it stays.
func sumDuration(raw string) int64 {
	parts := strings.Split(raw, ":")
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		total += n
	}
	return total
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
