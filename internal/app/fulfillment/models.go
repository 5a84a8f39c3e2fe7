package fulfillment

type CheckoutRequest struct {
	ProductID  string `json:"productId"`
	BuyerEmail string `json:"buyerEmail"`
}

type CheckoutResponse struct {
	OrderID string `json:"-"`
	URL     string `json:"url"`
}

type FinalizeResponse struct {
	OK          bool   `json:"ok"`
	OrderID     string `json:"orderId"`
	DownloadURL string `json:"downloadUrl"`
}
