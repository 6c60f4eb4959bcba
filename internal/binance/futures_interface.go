package binance

// FuturesClient defines the minimal Binance USD-M futures REST surface
// internal/broker/binance.Adapter drives: account balance at startup,
// stop-entry/take-profit placement and cancellation, order lookup for
// modify-by-replace, book depth for spread estimation, and exchange
// info for the LOT_SIZE step size.
type FuturesClient interface {
	// GetFuturesAccountInfo retrieves futures account information including balances
	GetFuturesAccountInfo() (*FuturesAccountInfo, error)

	// PlaceFuturesOrder places a new futures order
	PlaceFuturesOrder(params FuturesOrderParams) (*FuturesOrderResponse, error)

	// CancelFuturesOrder cancels an existing futures order
	CancelFuturesOrder(symbol string, orderId int64) error

	// GetOrder retrieves a specific order
	GetOrder(symbol string, orderId int64) (*FuturesOrder, error)

	// GetOrderBookDepth retrieves the order book depth
	GetOrderBookDepth(symbol string, limit int) (*OrderBookDepth, error)

	// GetFuturesKlines retrieves candlestick data for futures
	GetFuturesKlines(symbol, interval string, limit int) ([]Kline, error)

	// GetFuturesExchangeInfo retrieves futures exchange information
	GetFuturesExchangeInfo() (*FuturesExchangeInfo, error)
}
