package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-shop-api/internal/domain"
)

const statusCreatedAtIndex = "status-created_at-index"

// OrderRepo provides the order-table operations reconciliation needs.
// Order placement and the rest of the order lifecycle are owned by the
// storefront services and write to the same table.
type OrderRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOrderRepo(client *dynamodb.Client, tableName string) *OrderRepo {
	return &OrderRepo{client: client, tableName: tableName}
}

// FindEligible queries the status GSI for orders in the given status created
// before olderThan, oldest first. The query follows LastEvaluatedKey so a pass
// sees every eligible order, not just the first page.
func (r *OrderRepo) FindEligible(ctx context.Context, status domain.OrderStatus, olderThan time.Time) ([]domain.Order, error) {
	var orders []domain.Order
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(statusCreatedAtIndex),
			ExclusiveStartKey:      startKey,
			KeyConditionExpression: aws.String("#s = :status AND created_at < :cutoff"),
			ExpressionAttributeNames: map[string]string{
				"#s": fieldStatus, // "status" is a DynamoDB reserved word
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: string(status)},
				":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(olderThan.UnixNano(), 10)},
			},
		})
		if err != nil {
			return nil, err
		}
		var page []domain.Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		orders = append(orders, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return orders, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// TransitionIfStatus applies from→to on a single order, conditional on the
// order still being in the from status. Returns false (no error) when the
// condition fails — the order was transitioned by someone else first, e.g. an
// admin cancellation, which must win over the sweep.
func (r *OrderRepo) TransitionIfStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	now := time.Now()
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:      string(to),
		fieldConfirmedAt: now.UnixNano(),
	})
	if err != nil {
		return false, err
	}
	ue.Values[":from"] = &types.AttributeValueMemberS{Value: string(from)}
	ue.Names["#cond"] = fieldStatus

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("order_id", orderID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#cond = :from"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AppendHistory appends one transition entry to the order's history list.
func (r *OrderRepo) AppendHistory(ctx context.Context, orderID string, entry domain.OrderTransition) error {
	av, err := attributevalue.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("order_id", orderID),
		UpdateExpression: aws.String("SET #h = list_append(if_not_exists(#h, :empty), :entry)"),
		ExpressionAttributeNames: map[string]string{
			"#h": fieldHistory,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":entry": &types.AttributeValueMemberL{Value: []types.AttributeValue{av}},
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		},
	})
	return err
}
