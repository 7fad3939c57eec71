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

// VerificationRepo provides typed DynamoDB operations for the verification_codes table.
// PK: subject_purpose — one row per (subject, purpose). Issuing writes through
// the same key, so the new code replaces its predecessor atomically and two
// unconsumed codes for the same pair can never coexist, regardless of how many
// writers race.
type VerificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewVerificationRepo(client *dynamodb.Client, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

// Put writes the code for its (subject, purpose) slot, replacing whatever
// occupied it. The replacement is the supersession: the previous code ceases
// to exist rather than being flagged.
func (r *VerificationRepo) Put(ctx context.Context, v *domain.VerificationCode) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal verification code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Current returns the code occupying the (subject, purpose) slot regardless of
// its consumed or expired state. Used for the issuance cooldown, which is
// measured from persisted creation time so it survives restarts. The read is
// strongly consistent so a just-issued code cannot slip past the cooldown.
func (r *VerificationRepo) Current(ctx context.Context, subject string, purpose domain.Purpose) (*domain.VerificationCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldSubjectPurpose, domain.SubjectPurposeKey(subject, purpose)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("no code for subject %s: %w", subject, domain.ErrNotFound)
	}
	var v domain.VerificationCode
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindActive returns the code in the (subject, purpose) slot if it matches,
// is unconsumed and is unexpired at now, or ErrNotFound.
func (r *VerificationRepo) FindActive(ctx context.Context, subject, code string, purpose domain.Purpose, now time.Time) (*domain.VerificationCode, error) {
	v, err := r.Current(ctx, subject, purpose)
	if err != nil {
		return nil, err
	}
	if v.Code != code || v.Consumed || v.Expired(now) {
		return nil, fmt.Errorf("no active code: %w", domain.ErrNotFound)
	}
	return v, nil
}

// MarkConsumed flips the consumed flag, conditional on the slot still holding
// this exact code unconsumed. Returns false (no error) when the condition
// fails — another verify call won the race, or a fresh issue replaced the row.
func (r *VerificationRepo) MarkConsumed(ctx context.Context, subject string, purpose domain.Purpose, verificationID string) (bool, error) {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldSubjectPurpose, domain.SubjectPurposeKey(subject, purpose)),
		UpdateExpression:    aws.String("SET #c = :t"),
		ConditionExpression: aws.String("verification_id = :id AND #c = :f"),
		ExpressionAttributeNames: map[string]string{
			"#c": fieldConsumed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: verificationID},
			":t":  &types.AttributeValueMemberBOOL{Value: true},
			":f":  &types.AttributeValueMemberBOOL{Value: false},
		},
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

// DeleteExpired removes rows whose expiry or consumption predates the
// retention cutoff. DynamoDB's TTL eventually collects expired rows anyway;
// this makes the retention window explicit and immediate. The scan follows
// LastEvaluatedKey so rows beyond the first page are not missed.
func (r *VerificationRepo) DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	cutoff := now.Add(-retention)
	count := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: startKey,
			FilterExpression:  aws.String("#exp < :expCutoff OR (#c = :t AND #cr < :createdCutoff)"),
			ExpressionAttributeNames: map[string]string{
				"#exp": fieldExpiresAt,
				"#c":   fieldConsumed,
				"#cr":  fieldCreatedAt,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":expCutoff":     &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.Unix(), 10)},
				":t":             &types.AttributeValueMemberBOOL{Value: true},
				":createdCutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.UnixNano(), 10)},
			},
		})
		if err != nil {
			return count, err
		}
		for _, item := range out.Items {
			var v domain.VerificationCode
			if err := attributevalue.UnmarshalMap(item, &v); err != nil {
				return count, err
			}
			_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key:       strKey(fieldSubjectPurpose, v.SubjectPurpose),
			})
			if err != nil {
				return count, err
			}
			count++
		}
		if len(out.LastEvaluatedKey) == 0 {
			return count, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
