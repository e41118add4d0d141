package dbutils

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jinzhu/gorm"
	"go.uber.org/zap"
)

//Attachment is a set of rows and the relationship field to attach on them, see AttachForeignKeys
type Attachment struct {
	//Objects is a slice or pointer to a slice of model structs or struct pointers
	Objects interface{}
	//Field is the name of the relationship field on the model
	Field string
}

//relation describes how a relationship field on an owner model is filled from a related model
type relation struct {
	//field is the relationship field on the owner
	field *gorm.StructField
	//ownerKey is the owner field holding the value to look up
	ownerKey string
	//related is the model the relationship points to
	related *modelInfo
	//relatedKey and relatedColumn are the field and column on the related model matched against ownerKey
	relatedKey    string
	relatedColumn string

	//polymorphic relationships restrict the related rows by a type column
	polymorphicColumn string
	polymorphicValue  string
}

//newRelation resolves the relationship named field on the owner model
func newRelation(db *gorm.DB, owner *modelInfo, field string) (*relation, error) {
	f, err := owner.field(field)
	if err != nil {
		return nil, err
	}
	r := f.Relationship
	if r == nil {
		return nil, fmt.Errorf("%w: %s.%s is not a relationship", ErrUnsupportedRelation, owner.name(), f.Name)
	}

	ret := relation{
		field:             f,
		related:           modelInfoOf(db, f.Struct.Type),
		polymorphicColumn: r.PolymorphicDBName,
		polymorphicValue:  r.PolymorphicValue,
	}

	switch r.Kind {
	case "belongs_to":
		if len(r.ForeignFieldNames) != 1 || len(r.AssociationForeignDBNames) != 1 {
			return nil, fmt.Errorf("%w: %s.%s", ErrCompositeKey, owner.name(), f.Name)
		}
		//the owner holds the foreign key, the related model is looked up by the referenced column
		ret.ownerKey = r.ForeignFieldNames[0]
		ret.relatedKey = r.AssociationForeignFieldNames[0]
		ret.relatedColumn = r.AssociationForeignDBNames[0]
	case "has_one", "has_many":
		if len(r.AssociationForeignFieldNames) != 1 || len(r.ForeignDBNames) != 1 {
			return nil, fmt.Errorf("%w: %s.%s", ErrCompositeKey, owner.name(), f.Name)
		}
		//the related model holds the foreign key pointing back at the owner
		ret.ownerKey = r.AssociationForeignFieldNames[0]
		ret.relatedKey = r.ForeignFieldNames[0]
		ret.relatedColumn = r.ForeignDBNames[0]
	default:
		return nil, fmt.Errorf("%w: %s.%s is %s", ErrUnsupportedRelation, owner.name(), f.Name, r.Kind)
	}

	return &ret, nil
}

//attachTarget is a set of rows with the relationship to fill on them
type attachTarget struct {
	list reflect.Value
	rel  *relation
}

//AttachForeignKey will fill the relationship field on every row of objects with a single query, a LEFT OUTER JOIN
//done in memory. Works with belongs_to and has_one relationships, and has_many relationships where every related
//row is appended to the slice field.
//
//	err := AttachForeignKey(ctx, db, posts, "Thread")
//
//Rows whose relationship is already set are not fetched again unless WithPreload is used. Rows without a related
//row get the zero value of the field: nil for pointers, an empty slice for has_many.
//No query is issued when there is nothing to fetch.
func AttachForeignKey(ctx context.Context, db *gorm.DB, objects interface{}, field string, opts ...Option) error {
	list, err := sliceOf(objects)
	if err != nil {
		return err
	}
	if list.Len() == 0 {
		return nil
	}

	owner := modelInfoOf(db, list.Type())
	rel, err := newRelation(db, owner, field)
	if err != nil {
		return err
	}

	return attach(ctx, db, rel.related, rel.relatedColumn, []attachTarget{{list: list, rel: rel}}, newOptions(opts))
}

//AttachForeignKeys attaches the same related model to several sets of rows with a single query.
//
//	err := AttachForeignKeys(ctx, db, []Attachment{{posts, "Author"}, {threads, "Creator"}})
//
//Every field must reference the same model by the same column, otherwise ErrModelMismatch is returned before any
//query runs.
func AttachForeignKeys(ctx context.Context, db *gorm.DB, sets []Attachment, opts ...Option) error {
	var (
		targets []attachTarget
		related *modelInfo
		column  string
	)

	for _, s := range sets {
		list, err := sliceOf(s.Objects)
		if err != nil {
			return err
		}

		rel, err := newRelation(db, modelInfoOf(db, list.Type()), s.Field)
		if err != nil {
			return err
		}
		if rel.field.Struct.Type.Kind() == reflect.Slice || rel.polymorphicColumn != "" {
			return fmt.Errorf("%w: %s can not be shared", ErrUnsupportedRelation, s.Field)
		}

		if related == nil {
			related, column = rel.related, rel.relatedColumn
		} else if related.itemType != rel.related.itemType || column != rel.relatedColumn {
			return fmt.Errorf("%w (%s.%s != %s.%s)", ErrModelMismatch,
				related.name(), column, rel.related.name(), rel.relatedColumn)
		}

		targets = append(targets, attachTarget{list: list, rel: rel})
	}

	if related == nil {
		return nil
	}
	return attach(ctx, db, related, column, targets, newOptions(opts))
}

//attach runs the lookup query for every target and fills their relationship fields
func attach(ctx context.Context, db *gorm.DB, related *modelInfo, column string, targets []attachTarget, o options) error {
	log := o.log(ctx).With(zap.String("model", related.name()), zap.String("column", column))

	type pending struct {
		row reflect.Value
		rel *relation
		key string
		//null is set when the owner key is NULL, the row only gets the zero value
		null bool
	}

	var (
		rows   []pending
		values []interface{}
		seen   = make(map[string]struct{})
	)

	for _, t := range targets {
		for i := 0; i < t.list.Len(); i++ {
			row, ok := structOf(t.list.Index(i))
			if !ok {
				continue
			}
			if len(o.preloads) == 0 && !row.FieldByName(t.rel.field.Name).IsZero() {
				//already attached
				continue
			}

			val, err := fieldValue(row.FieldByName(t.rel.ownerKey))
			if err != nil {
				return err
			}
			if val == nil {
				rows = append(rows, pending{row: row, rel: t.rel, null: true})
				continue
			}

			key := keyString(val)
			rows = append(rows, pending{row: row, rel: t.rel, key: key})
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				values = append(values, val)
			}
		}
	}

	lookup := make(map[string][]reflect.Value)
	if len(values) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		q := db.New()
		for _, p := range o.preloads {
			q = q.Preload(p)
		}
		if rel := targets[0].rel; rel.polymorphicColumn != "" {
			q = q.Where(fmt.Sprintf("%s = ?", q.Dialect().Quote(rel.polymorphicColumn)), rel.polymorphicValue)
		}

		chunk := related.newChunk()
		err := q.Where(fmt.Sprintf("%s IN (?)", q.Dialect().Quote(column)), values).Find(chunk.Interface()).Error
		if err != nil {
			return err
		}
		o.metrics.query(helperAttach)

		items := chunk.Elem()
		o.metrics.rows(helperAttach, items.Len())

		relatedKey := targets[0].rel.relatedKey
		for i := 0; i < items.Len(); i++ {
			item := items.Index(i)
			val, err := fieldValue(item.Elem().FieldByName(relatedKey))
			if err != nil {
				return err
			}
			if val == nil {
				continue
			}
			key := keyString(val)
			lookup[key] = append(lookup[key], item)
		}
	}

	for _, p := range rows {
		var matches []reflect.Value
		if !p.null {
			matches = lookup[p.key]
		}
		setRelation(p.row.FieldByName(p.rel.field.Name), matches)
	}

	log.Debug("attached relationship",
		zap.Int("rows", len(rows)),
		zap.Int("values", len(values)),
		zap.Int("matched", len(lookup)),
	)

	return nil
}

//setRelation fills a relationship field from matched related rows, pointers to structs
func setRelation(field reflect.Value, matches []reflect.Value) {
	switch field.Kind() {
	case reflect.Slice:
		//has_many, always set a non nil slice so the rows count as attached
		s := reflect.MakeSlice(field.Type(), 0, len(matches))
		for _, m := range matches {
			s = reflect.Append(s, asType(m.Elem(), field.Type().Elem()))
		}
		field.Set(s)
	default:
		if len(matches) == 0 {
			field.Set(reflect.Zero(field.Type()))
			return
		}
		field.Set(asType(matches[0].Elem(), field.Type()))
	}
}
