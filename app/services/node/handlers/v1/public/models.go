package public

type chainTip struct {
	BlockID     string `json:"blockid"`
	ChainLength uint64 `json:"chainlength"`
}

type mempool struct {
	TxIDs []string `json:"txids"`
}

type connection struct {
	ID       string `json:"id"`
	Addr     string `json:"addr"`
	Outbound bool   `json:"outbound"`
}

type peers struct {
	Known       []string     `json:"known"`
	Connections []connection `json:"connections"`
}

type submitted struct {
	ObjectID string `json:"objectid"`
	Kind     string `json:"kind"`
	Created  bool   `json:"created"`
}
