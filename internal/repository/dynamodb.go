package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// uniqueTable holds one guard item per unique field value.
const uniqueTable = "unique"

// dynamodbAPI is the minimal DynamoDB interface required by DynamoBackend.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoBackend stores each collection in its own table, named
// <prefix><collection>, with partition key "_id". Unique fields are enforced
// with guard items in <prefix>unique written in the same transaction.
type DynamoBackend struct {
	api    dynamodbAPI
	prefix string
}

// NewDynamoBackend creates a backend over api.
func NewDynamoBackend(api dynamodbAPI, tablePrefix string) (*DynamoBackend, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tablePrefix) == "" {
		return nil, errors.New("repository: table prefix must not be empty")
	}
	return &DynamoBackend{api: api, prefix: tablePrefix}, nil
}

func (d *DynamoBackend) table(coll string) *string {
	return aws.String(d.prefix + coll)
}

func (d *DynamoBackend) InsertOne(ctx context.Context, coll string, doc any) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("repository: marshal %s item: %w", coll, err)
	}
	if _, ok := item[fieldID].(*types.AttributeValueMemberS); !ok {
		return errors.New("repository: document has no string _id")
	}

	guards := d.guardKeys(coll, item)
	if len(guards) == 0 {
		_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                d.table(coll),
			Item:                     item,
			ConditionExpression:      aws.String("attribute_not_exists(#id)"),
			ExpressionAttributeNames: map[string]string{"#id": fieldID},
		})
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: %s", ErrDuplicate, coll)
		}
		if err != nil {
			return fmt.Errorf("repository: put %s item: %w", coll, err)
		}
		return nil
	}

	tx := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:                d.table(coll),
			Item:                     item,
			ConditionExpression:      aws.String("attribute_not_exists(#id)"),
			ExpressionAttributeNames: map[string]string{"#id": fieldID},
		},
	}}
	for _, key := range guards {
		tx = append(tx, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                d.table(uniqueTable),
				Item:                     key,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": fieldID},
			},
		})
	}
	_, err = d.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx})
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		return fmt.Errorf("%w: %s", ErrDuplicate, coll)
	}
	if err != nil {
		return fmt.Errorf("repository: insert %s item: %w", coll, err)
	}
	return nil
}

func (d *DynamoBackend) FindOne(ctx context.Context, coll string, conds []Field, out any) (bool, error) {
	items, err := d.match(ctx, coll, conds)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(items[0], out); err != nil {
		return false, fmt.Errorf("repository: unmarshal %s item: %w", coll, err)
	}
	return true, nil
}

func (d *DynamoBackend) Find(ctx context.Context, coll string, conds []Field, out any) error {
	items, err := d.match(ctx, coll, conds)
	if err != nil {
		return err
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("repository: unmarshal %s items: %w", coll, err)
	}
	return nil
}

func (d *DynamoBackend) UpdateOne(ctx context.Context, coll string, conds []Field, set []Field) (bool, error) {
	return d.update(ctx, coll, conds, func(e *expr) (string, error) {
		return e.assignments(set)
	})
}

func (d *DynamoBackend) Push(ctx context.Context, coll string, conds []Field, field string, values []any, set []Field) (bool, error) {
	return d.update(ctx, coll, conds, func(e *expr) (string, error) {
		vals, err := attributevalue.Marshal(values)
		if err != nil {
			return "", fmt.Errorf("repository: marshal pushed values: %w", err)
		}
		name := e.name(field)
		push := fmt.Sprintf("%s = list_append(if_not_exists(%s, %s), %s)",
			name, name, e.value(&types.AttributeValueMemberL{Value: []types.AttributeValue{}}), e.value(vals))
		rest, err := e.assignments(set)
		if err != nil {
			return "", err
		}
		if rest == "" {
			return "SET " + push, nil
		}
		return "SET " + push + ", " + strings.TrimPrefix(rest, "SET "), nil
	})
}

// update resolves the first matching item and applies the update expression
// built by build, conditional on the item still matching.
func (d *DynamoBackend) update(ctx context.Context, coll string, conds []Field, build func(*expr) (string, error)) (bool, error) {
	target, err := d.first(ctx, coll, conds)
	if err != nil || target == nil {
		return false, err
	}

	e := newExpr()
	cond, err := e.matchAll(conds)
	if err != nil {
		return false, err
	}
	updateExpr, err := build(e)
	if err != nil {
		return false, err
	}

	_, err = d.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 d.table(coll),
		Key:                       map[string]types.AttributeValue{fieldID: target[fieldID]},
		UpdateExpression:          aws.String(updateExpr),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  e.names,
		ExpressionAttributeValues: e.valuesOrNil(),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repository: update %s item: %w", coll, err)
	}
	return true, nil
}

func (d *DynamoBackend) DeleteOne(ctx context.Context, coll string, conds []Field) (bool, error) {
	target, err := d.first(ctx, coll, conds)
	if err != nil || target == nil {
		return false, err
	}

	e := newExpr()
	cond, err := e.matchAll(conds)
	if err != nil {
		return false, err
	}
	key := map[string]types.AttributeValue{fieldID: target[fieldID]}

	guards := d.guardKeys(coll, target)
	if len(guards) == 0 {
		_, err = d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 d.table(coll),
			Key:                       key,
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  e.names,
			ExpressionAttributeValues: e.valuesOrNil(),
		})
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("repository: delete %s item: %w", coll, err)
		}
		return true, nil
	}

	tx := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName:                 d.table(coll),
			Key:                       key,
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  e.names,
			ExpressionAttributeValues: e.valuesOrNil(),
		},
	}}
	for _, g := range guards {
		tx = append(tx, types.TransactWriteItem{
			Delete: &types.Delete{TableName: d.table(uniqueTable), Key: g},
		})
	}
	_, err = d.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx})
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repository: delete %s item: %w", coll, err)
	}
	return true, nil
}

func (d *DynamoBackend) Close(context.Context) error { return nil }

func (d *DynamoBackend) first(ctx context.Context, coll string, conds []Field) (map[string]types.AttributeValue, error) {
	items, err := d.match(ctx, coll, conds)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// match returns every item satisfying conds, sorted by _id. Lookups that
// name an _id use a consistent Query on the key; everything else scans.
func (d *DynamoBackend) match(ctx context.Context, coll string, conds []Field) ([]map[string]types.AttributeValue, error) {
	var keyCond *Field
	rest := make([]Field, 0, len(conds))
	for i := range conds {
		if conds[i].Name == fieldID && keyCond == nil {
			keyCond = &conds[i]
			continue
		}
		rest = append(rest, conds[i])
	}

	e := newExpr()
	var filter *string
	if len(rest) > 0 {
		f, err := e.matchAll(rest)
		if err != nil {
			return nil, err
		}
		filter = aws.String(f)
	}

	var items []map[string]types.AttributeValue
	if keyCond != nil {
		kc, err := e.matchAll([]Field{*keyCond})
		if err != nil {
			return nil, err
		}
		in := &dynamodb.QueryInput{
			TableName:              d.table(coll),
			KeyConditionExpression: aws.String(kc),
			FilterExpression:       filter,
			ConsistentRead:         aws.Bool(true),
		}
		in.ExpressionAttributeNames, in.ExpressionAttributeValues = e.names, e.valuesOrNil()
		for {
			out, err := d.api.Query(ctx, in)
			if err != nil {
				return nil, fmt.Errorf("repository: query %s: %w", coll, err)
			}
			items = append(items, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			in.ExclusiveStartKey = out.LastEvaluatedKey
		}
	} else {
		in := &dynamodb.ScanInput{
			TableName:        d.table(coll),
			FilterExpression: filter,
			ConsistentRead:   aws.Bool(true),
		}
		if filter != nil {
			in.ExpressionAttributeNames, in.ExpressionAttributeValues = e.names, e.valuesOrNil()
		}
		for {
			out, err := d.api.Scan(ctx, in)
			if err != nil {
				return nil, fmt.Errorf("repository: scan %s: %w", coll, err)
			}
			items = append(items, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			in.ExclusiveStartKey = out.LastEvaluatedKey
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return idOf(items[i]) < idOf(items[j])
	})
	return items, nil
}

// guardKeys returns the unique-table keys claimed by item.
func (d *DynamoBackend) guardKeys(coll string, item map[string]types.AttributeValue) []map[string]types.AttributeValue {
	var keys []map[string]types.AttributeValue
	for _, f := range uniqueFields[coll] {
		s, ok := item[f].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		keys = append(keys, map[string]types.AttributeValue{
			fieldID: &types.AttributeValueMemberS{Value: coll + "#" + f + "#" + s.Value},
		})
	}
	return keys
}

func idOf(item map[string]types.AttributeValue) string {
	if s, ok := item[fieldID].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// expr accumulates placeholder names and values for one request.
type expr struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func newExpr() *expr {
	return &expr{names: map[string]string{}, values: map[string]types.AttributeValue{}}
}

func (e *expr) name(field string) string {
	for k, v := range e.names {
		if v == field {
			return k
		}
	}
	k := fmt.Sprintf("#n%d", len(e.names))
	e.names[k] = field
	return k
}

func (e *expr) value(v types.AttributeValue) string {
	k := fmt.Sprintf(":v%d", len(e.values))
	e.values[k] = v
	return k
}

func (e *expr) valuesOrNil() map[string]types.AttributeValue {
	if len(e.values) == 0 {
		return nil
	}
	return e.values
}

// matchAll renders conds as a conjunction of equality tests. An empty set
// only requires the item to exist.
func (e *expr) matchAll(conds []Field) (string, error) {
	if len(conds) == 0 {
		return fmt.Sprintf("attribute_exists(%s)", e.name(fieldID)), nil
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		av, err := attributevalue.Marshal(c.Value)
		if err != nil {
			return "", fmt.Errorf("repository: marshal condition %q: %w", c.Name, err)
		}
		parts = append(parts, e.name(c.Name)+" = "+e.value(av))
	}
	return strings.Join(parts, " AND "), nil
}

func (e *expr) assignments(set []Field) (string, error) {
	if len(set) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(set))
	for _, f := range set {
		av, err := attributevalue.Marshal(f.Value)
		if err != nil {
			return "", fmt.Errorf("repository: marshal %q: %w", f.Name, err)
		}
		parts = append(parts, e.name(f.Name)+" = "+e.value(av))
	}
	return "SET " + strings.Join(parts, ", "), nil
}
