package bookstorev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName содержит полное имя gRPC-сервиса.
const ServiceName = "bookstore.v1.BookstoreService"

// Полные имена методов.
const (
	MethodPlaceOrder           = "/" + ServiceName + "/PlaceOrder"
	MethodCancelOrder          = "/" + ServiceName + "/CancelOrder"
	MethodGetOrder             = "/" + ServiceName + "/GetOrder"
	MethodListMyOrders         = "/" + ServiceName + "/ListMyOrders"
	MethodSearchOrders         = "/" + ServiceName + "/SearchOrders"
	MethodUpdateTrackingStatus = "/" + ServiceName + "/UpdateTrackingStatus"
	MethodGetBook              = "/" + ServiceName + "/GetBook"
)

// BookstoreServiceServer описывает серверную сторону API.
type BookstoreServiceServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	ListMyOrders(context.Context, *ListMyOrdersRequest) (*ListOrdersResponse, error)
	SearchOrders(context.Context, *SearchOrdersRequest) (*ListOrdersResponse, error)
	UpdateTrackingStatus(context.Context, *UpdateTrackingStatusRequest) (*UpdateTrackingStatusResponse, error)
	GetBook(context.Context, *GetBookRequest) (*GetBookResponse, error)
}

// UnimplementedBookstoreServiceServer отвечает Unimplemented на все методы;
// встраивается в реализации для совместимости при добавлении методов.
type UnimplementedBookstoreServiceServer struct{}

func (UnimplementedBookstoreServiceServer) PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PlaceOrder not implemented")
}

func (UnimplementedBookstoreServiceServer) CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelOrder not implemented")
}

func (UnimplementedBookstoreServiceServer) GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrder not implemented")
}

func (UnimplementedBookstoreServiceServer) ListMyOrders(context.Context, *ListMyOrdersRequest) (*ListOrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListMyOrders not implemented")
}

func (UnimplementedBookstoreServiceServer) SearchOrders(context.Context, *SearchOrdersRequest) (*ListOrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SearchOrders not implemented")
}

func (UnimplementedBookstoreServiceServer) UpdateTrackingStatus(context.Context, *UpdateTrackingStatusRequest) (*UpdateTrackingStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateTrackingStatus not implemented")
}

func (UnimplementedBookstoreServiceServer) GetBook(context.Context, *GetBookRequest) (*GetBookResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBook not implemented")
}

// RegisterBookstoreServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterBookstoreServiceServer(s grpc.ServiceRegistrar, srv BookstoreServiceServer) {
	s.RegisterService(&BookstoreServiceDesc, srv)
}

// BookstoreServiceDesc описывает сервис для grpc.Server.
var BookstoreServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookstoreServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: unaryHandler(MethodPlaceOrder, BookstoreServiceServer.PlaceOrder)},
		{MethodName: "CancelOrder", Handler: unaryHandler(MethodCancelOrder, BookstoreServiceServer.CancelOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler(MethodGetOrder, BookstoreServiceServer.GetOrder)},
		{MethodName: "ListMyOrders", Handler: unaryHandler(MethodListMyOrders, BookstoreServiceServer.ListMyOrders)},
		{MethodName: "SearchOrders", Handler: unaryHandler(MethodSearchOrders, BookstoreServiceServer.SearchOrders)},
		{MethodName: "UpdateTrackingStatus", Handler: unaryHandler(MethodUpdateTrackingStatus, BookstoreServiceServer.UpdateTrackingStatus)},
		{MethodName: "GetBook", Handler: unaryHandler(MethodGetBook, BookstoreServiceServer.GetBook)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/bookstore/v1",
}

func unaryHandler[Req, Resp any](fullMethod string, call func(BookstoreServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookstoreServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookstoreServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookstoreServiceClient описывает клиентскую сторону API.
type BookstoreServiceClient interface {
	PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error)
	CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error)
	GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error)
	ListMyOrders(ctx context.Context, in *ListMyOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	SearchOrders(ctx context.Context, in *SearchOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	UpdateTrackingStatus(ctx context.Context, in *UpdateTrackingStatusRequest, opts ...grpc.CallOption) (*UpdateTrackingStatusResponse, error)
	GetBook(ctx context.Context, in *GetBookRequest, opts ...grpc.CallOption) (*GetBookResponse, error)
}

type bookstoreServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBookstoreServiceClient создаёт клиента; JSON-кодек выбирается автоматически.
func NewBookstoreServiceClient(cc grpc.ClientConnInterface) BookstoreServiceClient {
	return &bookstoreServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *bookstoreServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	return invoke[PlaceOrderResponse](ctx, c.cc, MethodPlaceOrder, in, opts)
}

func (c *bookstoreServiceClient) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error) {
	return invoke[CancelOrderResponse](ctx, c.cc, MethodCancelOrder, in, opts)
}

func (c *bookstoreServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	return invoke[GetOrderResponse](ctx, c.cc, MethodGetOrder, in, opts)
}

func (c *bookstoreServiceClient) ListMyOrders(ctx context.Context, in *ListMyOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, MethodListMyOrders, in, opts)
}

func (c *bookstoreServiceClient) SearchOrders(ctx context.Context, in *SearchOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, MethodSearchOrders, in, opts)
}

func (c *bookstoreServiceClient) UpdateTrackingStatus(ctx context.Context, in *UpdateTrackingStatusRequest, opts ...grpc.CallOption) (*UpdateTrackingStatusResponse, error) {
	return invoke[UpdateTrackingStatusResponse](ctx, c.cc, MethodUpdateTrackingStatus, in, opts)
}

func (c *bookstoreServiceClient) GetBook(ctx context.Context, in *GetBookRequest, opts ...grpc.CallOption) (*GetBookResponse, error) {
	return invoke[GetBookResponse](ctx, c.cc, MethodGetBook, in, opts)
}
