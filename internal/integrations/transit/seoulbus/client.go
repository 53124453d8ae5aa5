// Package seoulbus: клиент API 서울특별시 버스정보시스템 (ws.bus.go.kr).
package seoulbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/busnoti/internal/integrations/transit"
	"github.com/BearBump/busnoti/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const DefaultBaseURL = "http://ws.bus.go.kr/api/rest"

// defaultRouteFanout ограничивает параллельные запросы по маршрутам одной остановки.
const defaultRouteFanout = 8

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	fanout  int
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if apiKey == "" {
		slog.Warn("seoul bus api key is not configured, upstream calls will fail")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
		fanout:  defaultRouteFanout,
	}
}

func (c *Client) Region() models.Region { return models.RegionSeoul }

type msgHeader struct {
	HeaderCd  transit.FlexString `json:"headerCd"`
	HeaderMsg string             `json:"headerMsg"`
	ItemCount transit.FlexString `json:"itemCount"`
}

type envelope struct {
	MsgHeader *msgHeader      `json:"msgHeader"`
	MsgBody   json.RawMessage `json:"msgBody"`
}

type station struct {
	StID  transit.FlexString `json:"stId"`
	StNm  string             `json:"stNm"`
	ArsID transit.FlexString `json:"arsId"`
	TmX   transit.FlexString `json:"tmX"` // долгота
	TmY   transit.FlexString `json:"tmY"` // широта
}

type route struct {
	BusRouteID   transit.FlexString `json:"busRouteId"`
	BusRouteNm   transit.FlexString `json:"busRouteNm"`
	BusRouteAbrv transit.FlexString `json:"busRouteAbrv"`
	RouteType    transit.FlexString `json:"routeType"`
}

type arrival struct {
	BusRouteID transit.FlexString `json:"busRouteId"`
	BusRouteNm transit.FlexString `json:"busRouteNm"`
	RtNm       transit.FlexString `json:"rtNm"`
	StID       transit.FlexString `json:"stId"`
	StNm       string             `json:"stNm"`
	SectOrd    transit.FlexString `json:"sectOrd"`
	PlainNo1   string             `json:"plainNo1"`
	Exps1      transit.FlexString `json:"exps1"`
	PlainNo2   string             `json:"plainNo2"`
	Exps2      transit.FlexString `json:"exps2"`
}

type itemList[T any] struct {
	ItemList transit.OneOrMany[T] `json:"itemList"`
}

func (c *Client) SearchStations(ctx context.Context, keyword string) []models.StationDto {
	var body itemList[station]
	if err := c.get(ctx, "/stationinfo/getStationByName", url.Values{"stSrch": {keyword}}, &body); err != nil {
		logFailure("SearchStations", err)
		return []models.StationDto{}
	}
	out := make([]models.StationDto, 0, len(body.ItemList))
	for _, s := range body.ItemList {
		dto := models.StationDto{
			StationID:   s.StID.String(),
			StationName: s.StNm,
			ArsID:       s.ArsID.String(),
			Region:      models.RegionSeoul,
		}
		if v, ok := s.TmY.Float(); ok {
			dto.Latitude = &v
		}
		if v, ok := s.TmX.Float(); ok {
			dto.Longitude = &v
		}
		out = append(out, dto)
	}
	return out
}

// GetStationsAround: у апстрима нет поиска по координатам.
func (c *Client) GetStationsAround(ctx context.Context, lat, lng float64) []models.StationDto {
	slog.Debug("seoul bus api has no coordinate search", "lat", lat, "lng", lng)
	return []models.StationDto{}
}

// GetRoutesByStation ищет по arsId (номер остановки).
func (c *Client) GetRoutesByStation(ctx context.Context, stationID string) []models.RouteDto {
	routes, err := c.routesByStation(ctx, stationID)
	if err != nil {
		logFailure("GetRoutesByStation", err)
		return []models.RouteDto{}
	}
	return routes
}

func (c *Client) routesByStation(ctx context.Context, stationID string) ([]models.RouteDto, error) {
	var body itemList[route]
	if err := c.get(ctx, "/stationinfo/getRouteByStation", url.Values{"arsId": {stationID}}, &body); err != nil {
		return nil, err
	}
	out := make([]models.RouteDto, 0, len(body.ItemList))
	for _, r := range body.ItemList {
		name := r.BusRouteNm.String()
		if name == "" {
			name = r.BusRouteAbrv.String()
		}
		out = append(out, models.RouteDto{
			RouteID:   r.BusRouteID.String(),
			RouteName: name,
			RouteType: r.RouteType.String(),
			Region:    models.RegionSeoul,
		})
	}
	return out, nil
}

// GetArrivalInfo: сначала маршруты через остановку, затем прибытия по каждому
// маршруту, отфильтрованные по остановке. Ошибка одного маршрута даёт пустую часть.
func (c *Client) GetArrivalInfo(ctx context.Context, stationID string) []models.ArrivalInfo {
	routes, err := c.routesByStation(ctx, stationID)
	if err != nil {
		logFailure("GetArrivalInfo", err)
		return []models.ArrivalInfo{}
	}
	if len(routes) == 0 {
		return []models.ArrivalInfo{}
	}

	parts := make([][]models.ArrivalInfo, len(routes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i, r := range routes {
		g.Go(func() error {
			arr, err := c.arrivalsByRoute(gctx, r.RouteID, stationID)
			if err != nil {
				logFailure(fmt.Sprintf("arrivalsByRoute(%s)", r.RouteID), err)
				return nil
			}
			parts[i] = arr
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.ArrivalInfo, 0)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func (c *Client) arrivalsByRoute(ctx context.Context, routeID, stationID string) ([]models.ArrivalInfo, error) {
	var body itemList[arrival]
	if err := c.get(ctx, "/arrive/getArrInfoByRouteAll", url.Values{"busRouteId": {routeID}}, &body); err != nil {
		return nil, err
	}

	out := make([]models.ArrivalInfo, 0)
	for _, a := range body.ItemList {
		if a.StID.String() != stationID && !strings.Contains(a.StNm, stationID) {
			continue
		}
		rid := a.BusRouteID.String()
		if rid == "" {
			rid = routeID
		}
		name := a.BusRouteNm.String()
		if name == "" {
			name = a.RtNm.String()
		}
		staOrder, _ := a.SectOrd.Int()

		for _, v := range []struct {
			plate string
			exps  transit.FlexString
		}{{a.PlainNo1, a.Exps1}, {a.PlainNo2, a.Exps2}} {
			if v.plate == "" {
				continue
			}
			sec, ok := v.exps.Int()
			if !ok || sec <= 0 {
				continue
			}
			out = append(out, models.ArrivalInfo{
				RouteID:        rid,
				RouteName:      name,
				PredictTimeSec: sec,
				PredictTimeMin: sec / 60,
				PlateNo:        v.plate,
				StaOrder:       staOrder,
			})
		}
	}
	return out, nil
}

// get раскладывает msgBody в out. Конверт бывает двух видов: ServiceResult{...} или
// msgHeader/msgBody на верхнем уровне.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path += path
	q.Set("serviceKey", c.apiKey)
	q.Set("resultType", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("seoul bus http %d", resp.StatusCode)
	}

	var raw struct {
		ServiceResult *envelope `json:"ServiceResult"`
		envelope
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return errors.Wrap(err, "decode")
	}

	env := raw.ServiceResult
	if env == nil {
		env = &raw.envelope
	}
	if env.MsgHeader == nil {
		slog.Warn("unknown seoul bus response structure", "path", path)
		return nil
	}

	switch code := env.MsgHeader.HeaderCd.String(); code {
	case "0", "4":
	default:
		msg := env.MsgHeader.HeaderMsg
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("seoul bus api error (%s): %s", code, msg)
	}

	if len(env.MsgBody) == 0 || string(env.MsgBody) == "null" {
		return nil
	}
	return errors.Wrap(json.Unmarshal(env.MsgBody, out), "decode msgBody")
}

func logFailure(method string, err error) {
	slog.Error("seoul bus request failed", "method", method, "error", err.Error())
}
