package domain

// Сообщения, которыми обмениваются координатор, узловые агенты и машины.
// Формат — JSON; один и тот же словарь используется обеими сторонами.

// MessageTypeNextEdge тип запроса машины к узловому агенту
const MessageTypeNextEdge = "NEXT_EDGE"

// ErrNoRouteReply текст ошибки в ответе агента при неизвестном направлении
const ErrNoRouteReply = "NO_ROUTE"

// NextEdgeRequest запрос машины: куда ехать дальше
type NextEdgeRequest struct {
	Type        string `json:"type"`
	CarID       string `json:"car_id"`
	Destination string `json:"destination"`
}

// NextEdgeResponse ответ агента: следующий переход или ошибка
type NextEdgeResponse struct {
	NextEdge string `json:"next_edge,omitempty"`
	Error    string `json:"error,omitempty"`
}

// MLResult результат работы детектора по одному ребру
type MLResult struct {
	EdgeID string         `json:"edge_id"`
	ML     map[string]any `json:"ml"`
}

// GreenTimesResponse ответ координатора на запрос расчёта зелёного времени
type GreenTimesResponse struct {
	NodeID     string         `json:"node_id"`
	GreenTimes map[string]int `json:"green_times"`
	EdgesUsed  []string       `json:"edges_used"`
	MLResults  []MLResult     `json:"ml_results"`
}

// RoutingTableResponse ответ координатора с таблицей маршрутизации узла
type RoutingTableResponse struct {
	NodeID       string       `json:"node_id"`
	RoutingTable RoutingTable `json:"routing_table"`
	GeneratedAt  string       `json:"generated_at"`
}

// DVUpdateResponse результат одной итерации DV-алгоритма
type DVUpdateResponse struct {
	UpdatesApplied int `json:"updates_applied"`
}

// TokenRequest запрос оператора на выдачу токена
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse выданный токен доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
