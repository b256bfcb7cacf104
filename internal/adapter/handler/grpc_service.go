package handler

import (
	"context"

	"google.golang.org/grpc"
)

const CartServiceName = "storefront.cart.v1.Cart"

type GetCartRequest struct{}

type AddItemRequest struct {
	ProductID    string `json:"productId"`
	VariantID    string `json:"variantId"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
	ProductName  string `json:"productName"`
	VariantLabel string `json:"variantLabel"`
}

type SetQuantityRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type RemoveItemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
}

type ClearCartRequest struct{}

type PlaceOrderRequest struct {
	RequestID    string  `json:"requestId"`
	CustomerName string  `json:"customerName"`
	Phone        string  `json:"phone"`
	Delivery     string  `json:"delivery"`
	Address      *string `json:"address"`
	Comment      *string `json:"comment"`
}

type PlaceOrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
	Total   string `json:"total,omitempty"`
}

// CartServer is the server API of storefront.cart.v1.Cart.
type CartServer interface {
	GetCart(context.Context, *GetCartRequest) (*CartResponse, error)
	AddItem(context.Context, *AddItemRequest) (*CartResponse, error)
	SetQuantity(context.Context, *SetQuantityRequest) (*CartResponse, error)
	RemoveItem(context.Context, *RemoveItemRequest) (*CartResponse, error)
	ClearCart(context.Context, *ClearCartRequest) (*CartResponse, error)
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
}

var CartServiceDesc = grpc.ServiceDesc{
	ServiceName: CartServiceName,
	HandlerType: (*CartServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetCart", CartServer.GetCart),
		unaryMethod("AddItem", CartServer.AddItem),
		unaryMethod("SetQuantity", CartServer.SetQuantity),
		unaryMethod("RemoveItem", CartServer.RemoveItem),
		unaryMethod("ClearCart", CartServer.ClearCart),
		unaryMethod("PlaceOrder", CartServer.PlaceOrder),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/cart/v1/cart.proto",
}

func RegisterCartServer(s grpc.ServiceRegistrar, srv CartServer) {
	s.RegisterService(&CartServiceDesc, srv)
}

func unaryMethod[Req, Resp any](name string, call func(CartServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + CartServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CartServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CartServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CartClient calls storefront.cart.v1.Cart over the JSON codec.
type CartClient struct {
	cc grpc.ClientConnInterface
}

func NewCartClient(cc grpc.ClientConnInterface) *CartClient {
	return &CartClient{cc: cc}
}

func (c *CartClient) GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "GetCart", in, opts)
}

func (c *CartClient) AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "AddItem", in, opts)
}

func (c *CartClient) SetQuantity(ctx context.Context, in *SetQuantityRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "SetQuantity", in, opts)
}

func (c *CartClient) RemoveItem(ctx context.Context, in *RemoveItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "RemoveItem", in, opts)
}

func (c *CartClient) ClearCart(ctx context.Context, in *ClearCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "ClearCart", in, opts)
}

func (c *CartClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	return invoke[PlaceOrderResponse](ctx, c.cc, "PlaceOrder", in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+CartServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
