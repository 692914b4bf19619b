package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"

	"parkadmin/app/internal/auth"
	"parkadmin/app/internal/content"
)

type subscriberBody struct {
	_     struct{} `json:"-" additionalProperties:"true"`
	Email string   `json:"email" maxLength:"320"`
}

type subscriberInput struct {
	Body subscriberBody
}

type subscriberUpdateInput struct {
	ID   string `path:"id"`
	Body subscriberBody
}

type subscriberOutput struct {
	Body content.Subscriber
}

type subscriberWriteOutput struct {
	Status int
	Body   struct {
		Message    string             `json:"message"`
		Subscriber content.Subscriber `json:"subscriber"`
	}
}

func newSubscriberWriteOutput(status int, message string, subscriber *content.Subscriber) *subscriberWriteOutput {
	out := &subscriberWriteOutput{Status: status}
	out.Body.Message = message
	out.Body.Subscriber = *subscriber
	return out
}

func (s *Server) registerSubscriberRoutes() {
	base := apiPrefix + "/subscribers"
	tag := "subscribers"

	huma.Get(s.api, base, s.listSubscribersHandler, operation("list-subscribers", "List subscribers", auth.AccessEditor, tag))
	s.registerNextSeqRoute(content.ResourceSubscribers)
	huma.Get(s.api, base+"/{id}", s.getSubscriberHandler, operation("get-subscriber", "Fetch a subscriber", auth.AccessEditor, tag))
	huma.Post(s.api, base, s.createSubscriberHandler, operation("create-subscriber", "Add a subscriber", auth.AccessPublic, tag))
	huma.Patch(s.api, base+"/{id}", s.updateSubscriberHandler, operation("update-subscriber", "Edit a subscriber", auth.AccessEditor, tag))
	huma.Delete(s.api, base+"/{id}", s.deleteSubscribersHandler, operation("delete-subscribers", "Delete one or more subscribers", auth.AccessEditor, tag))
}

func (s *Server) listSubscribersHandler(ctx context.Context, input *listInput) (*listOutput[content.Subscriber], error) {
	result, err := s.content.ListSubscribers(ctx, input.query())
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing subscribers")
	}
	return newListOutput(result), nil
}

func (s *Server) getSubscriberHandler(ctx context.Context, input *idInput) (*subscriberOutput, error) {
	subscriber, err := s.content.GetSubscriber(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "fetching subscriber")
	}
	return &subscriberOutput{Body: *subscriber}, nil
}

func (s *Server) createSubscriberHandler(ctx context.Context, input *subscriberInput) (*subscriberWriteOutput, error) {
	subscriber, err := s.content.CreateSubscriber(ctx, input.Body.Email)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "creating subscriber")
	}
	return newSubscriberWriteOutput(stdhttp.StatusCreated, "Subscribed successfully", subscriber), nil
}

func (s *Server) updateSubscriberHandler(ctx context.Context, input *subscriberUpdateInput) (*subscriberWriteOutput, error) {
	subscriber, err := s.content.UpdateSubscriber(ctx, input.ID, input.Body.Email)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "updating subscriber")
	}
	return newSubscriberWriteOutput(stdhttp.StatusOK, "Subscriber updated successfully", subscriber), nil
}

func (s *Server) deleteSubscribersHandler(ctx context.Context, input *idInput) (*deleteOutput, error) {
	result, err := s.content.DeleteSubscribers(ctx, content.SplitIDs(input.ID))
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "deleting subscribers")
	}
	return newDeleteOutput("subscriber(s)", result), nil
}
