package dbutils_test

import (
	"context"
	"fmt"

	"github.com/jinzhu/gorm"

	"github.com/coursehero/dbutils"
)

//AttachForeignKey fills a relationship on rows that were already loaded. Only one query is issued for all posts.
func ExampleAttachForeignKey() {
	var db *gorm.DB

	type Thread struct {
		ThreadID uint `gorm:"primary_key"`
		Title    string
	}

	type Post struct {
		PostID   uint `gorm:"primary_key"`
		ThreadID uint
		Body     string

		Thread *Thread `gorm:"foreignkey:ThreadID;association_foreignkey:ThreadID"`
	}

	var posts []*Post
	if err := db.Where("body LIKE ?", "%gorm%").Find(&posts).Error; err != nil {
		fmt.Printf("err = %v\n", err)
		return
	}

	err := dbutils.AttachForeignKey(context.Background(), db, posts, "Thread")
	if err != nil {
		fmt.Printf("err = %v\n", err)
	}

	for _, p := range posts {
		if p.Thread != nil {
			fmt.Printf("Post %d is in %s\n", p.PostID, p.Thread.Title)
		}
	}
}

//ToMap indexes rows by the primary key, or by any column. A map of slices groups rows sharing a key.
func ExampleToMap() {
	type Post struct {
		PostID   uint `gorm:"primary_key"`
		ThreadID uint
	}

	posts := []Post{{PostID: 1, ThreadID: 1}, {PostID: 2, ThreadID: 1}, {PostID: 3, ThreadID: 2}}

	var byID map[uint]Post
	if err := dbutils.ToMap(posts, &byID, ""); err != nil {
		fmt.Printf("err = %v\n", err)
	}

	var byThread map[uint][]Post
	if err := dbutils.ToMap(posts, &byThread, "ThreadID"); err != nil {
		fmt.Printf("err = %v\n", err)
	}

	fmt.Println(len(byID), len(byThread[1]))
	// Output: 3 2
}

//A QuerySet without order or offset is iterated by primary key ranges, loading Step rows per query.
func ExampleQuerySet_Iterator() {
	var db *gorm.DB

	type Post struct {
		PostID   uint `gorm:"primary_key"`
		ThreadID uint
		Body     string
	}

	it, err := dbutils.NewQuerySet(db, Post{}).
		Where("thread_id = ?", 1).
		Step(1000).
		Iterator(context.Background())
	if err != nil {
		fmt.Printf("err = %v\n", err)
		return
	}
	defer it.Close()

	for it.Next() {
		var p Post
		if err := it.Scan(&p); err != nil {
			fmt.Printf("err = %v\n", err)
			return
		}
		fmt.Println(p.PostID)
	}
	if err := it.Err(); err != nil {
		fmt.Printf("err = %v\n", err)
	}
}

//SkinnyQuery streams rows from a single query. It can only be iterated once.
func ExampleSkinnyQuery() {
	var db *gorm.DB

	type Post struct {
		PostID uint `gorm:"primary_key"`
		Body   string
	}

	it, err := dbutils.NewSkinnyQuery(db.Order("post_id"), Post{}).Iterator(context.Background())
	if err != nil {
		fmt.Printf("err = %v\n", err)
		return
	}
	defer it.Close()

	for it.Next() {
		var p Post
		if err := it.Scan(&p); err != nil {
			fmt.Printf("err = %v\n", err)
			return
		}
		fmt.Println(p.Body)
	}
}
