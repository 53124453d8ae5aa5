// Package gbis: клиент GBIS (경기도 버스정보시스템, data.go.kr).
package gbis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/BearBump/busnoti/internal/integrations/transit"
	"github.com/BearBump/busnoti/internal/models"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://apis.data.go.kr/6410000"

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if apiKey == "" {
		slog.Warn("gbis api key is not configured, upstream calls will fail")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Region() models.Region { return models.RegionGyeonggi }

type msgHeader struct {
	QueryTime     string             `json:"queryTime"`
	ResultCode    transit.FlexString `json:"resultCode"`
	ResultMessage string             `json:"resultMessage"`
}

type station struct {
	StationID   transit.FlexString `json:"stationId"`
	StationName string             `json:"stationName"`
	X           transit.FlexString `json:"x"` // долгота
	Y           transit.FlexString `json:"y"` // широта
	MobileNo    transit.FlexString `json:"mobileNo"`
	RegionName  string             `json:"regionName"`
}

type route struct {
	RouteID     transit.FlexString `json:"routeId"`
	RouteName   transit.FlexString `json:"routeName"`
	RouteTypeCd transit.FlexString `json:"routeTypeCd"`
	StaOrder    transit.FlexString `json:"staOrder"`
}

// arrival: одна запись маршрута; внутри до двух машин (1-й и 2-й автобус).
type arrival struct {
	RouteID         transit.FlexString `json:"routeId"`
	RouteName       transit.FlexString `json:"routeName"`
	StaOrder        transit.FlexString `json:"staOrder"`
	PlateNo1        string             `json:"plateNo1"`
	PredictTime1    transit.FlexString `json:"predictTime1"`
	PredictTimeSec1 transit.FlexString `json:"predictTimeSec1"`
	LocationNo1     transit.FlexString `json:"locationNo1"`
	PlateNo2        string             `json:"plateNo2"`
	PredictTime2    transit.FlexString `json:"predictTime2"`
	PredictTimeSec2 transit.FlexString `json:"predictTimeSec2"`
	LocationNo2     transit.FlexString `json:"locationNo2"`
}

type stationListBody struct {
	BusStationList transit.OneOrMany[station] `json:"busStationList"`
}

type routeListBody struct {
	BusRouteList transit.OneOrMany[route] `json:"busRouteList"`
}

type arrivalListBody struct {
	BusArrivalList transit.OneOrMany[arrival] `json:"busArrivalList"`
}

func (c *Client) SearchStations(ctx context.Context, keyword string) []models.StationDto {
	var body stationListBody
	if err := c.get(ctx, "/busstationservice/v2/getBusStationListv2", url.Values{"keyword": {keyword}}, &body); err != nil {
		logFailure("SearchStations", err)
		return []models.StationDto{}
	}
	return mapStations(body.BusStationList)
}

func (c *Client) GetStationsAround(ctx context.Context, lat, lng float64) []models.StationDto {
	// GBIS: x: долгота, y: широта.
	q := url.Values{
		"x": {strconv.FormatFloat(lng, 'f', -1, 64)},
		"y": {strconv.FormatFloat(lat, 'f', -1, 64)},
	}
	var body stationListBody
	if err := c.get(ctx, "/busstationservice/v2/getBusStationAroundListv2", q, &body); err != nil {
		logFailure("GetStationsAround", err)
		return []models.StationDto{}
	}
	return mapStations(body.BusStationList)
}

func (c *Client) GetRoutesByStation(ctx context.Context, stationID string) []models.RouteDto {
	var body routeListBody
	if err := c.get(ctx, "/busstationservice/v2/getBusStationViaRouteListv2", url.Values{"stationId": {stationID}}, &body); err != nil {
		logFailure("GetRoutesByStation", err)
		return []models.RouteDto{}
	}
	out := make([]models.RouteDto, 0, len(body.BusRouteList))
	for _, r := range body.BusRouteList {
		out = append(out, models.RouteDto{
			RouteID:   r.RouteID.String(),
			RouteName: r.RouteName.String(),
			RouteType: r.RouteTypeCd.String(),
			Region:    models.RegionGyeonggi,
		})
	}
	return out
}

func (c *Client) GetArrivalInfo(ctx context.Context, stationID string) []models.ArrivalInfo {
	var body arrivalListBody
	if err := c.get(ctx, "/busarrivalservice/v2/getBusArrivalListv2", url.Values{"stationId": {stationID}}, &body); err != nil {
		logFailure("GetArrivalInfo", err)
		return []models.ArrivalInfo{}
	}
	return mapArrivals(body.BusArrivalList)
}

// get выполняет запрос и раскладывает msgBody в out. Коды 0 (успех) и 4 (нет данных) считаются нормой.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path += path
	q.Set("serviceKey", c.apiKey)
	q.Set("format", "json")
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
		return fmt.Errorf("gbis http %d", resp.StatusCode)
	}

	var raw struct {
		Response *struct {
			MsgHeader *msgHeader      `json:"msgHeader"`
			MsgBody   json.RawMessage `json:"msgBody"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return errors.Wrap(err, "decode")
	}
	if raw.Response == nil || raw.Response.MsgHeader == nil {
		return errors.New("invalid gbis response format")
	}

	h := raw.Response.MsgHeader
	switch h.ResultCode.String() {
	case "0":
	case "4":
		return nil
	default:
		msg := h.ResultMessage
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("gbis api error (%s): %s", h.ResultCode, msg)
	}

	if len(raw.Response.MsgBody) == 0 || string(raw.Response.MsgBody) == "null" {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw.Response.MsgBody, out), "decode msgBody")
}

func mapStations(in []station) []models.StationDto {
	out := make([]models.StationDto, 0, len(in))
	for _, s := range in {
		dto := models.StationDto{
			StationID:   s.StationID.String(),
			StationName: s.StationName,
			ArsID:       s.MobileNo.String(),
			Region:      models.RegionGyeonggi,
		}
		if v, ok := s.Y.Float(); ok {
			dto.Latitude = &v
		}
		if v, ok := s.X.Float(); ok {
			dto.Longitude = &v
		}
		out = append(out, dto)
	}
	return out
}

// mapArrivals раскладывает пару "1-й/2-й автобус" в отдельные записи.
func mapArrivals(in []arrival) []models.ArrivalInfo {
	out := make([]models.ArrivalInfo, 0, len(in)*2)
	for _, a := range in {
		staOrder, _ := a.StaOrder.Int()
		if ai, ok := vehicle(a, a.PlateNo1, a.PredictTimeSec1, a.PredictTime1, a.LocationNo1, staOrder); ok {
			out = append(out, ai)
		}
		if ai, ok := vehicle(a, a.PlateNo2, a.PredictTimeSec2, a.PredictTime2, a.LocationNo2, staOrder); ok {
			out = append(out, ai)
		}
	}
	return out
}

func vehicle(a arrival, plateNo string, sec, minutes, location transit.FlexString, staOrder int) (models.ArrivalInfo, bool) {
	if plateNo == "" {
		return models.ArrivalInfo{}, false
	}
	predictSec, ok := sec.Int()
	if !ok || predictSec <= 0 {
		return models.ArrivalInfo{}, false
	}
	predictMin, ok := minutes.Int()
	if !ok {
		predictMin = predictSec / 60
	}
	ai := models.ArrivalInfo{
		RouteID:        a.RouteID.String(),
		RouteName:      a.RouteName.String(),
		PredictTimeSec: predictSec,
		PredictTimeMin: predictMin,
		PlateNo:        plateNo,
		StaOrder:       staOrder,
	}
	if n, ok := location.Int(); ok {
		ai.RemainingStops = &n
	}
	return ai, true
}

func logFailure(method string, err error) {
	slog.Error("gbis request failed", "method", method, "error", err.Error())
}
