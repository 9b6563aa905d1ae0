package assistant

const parsePrompt = `You are parsing a question about household bills and expenses.

Question: %q

Extract the intent as a JSON object with these fields:
- query_type: one of [lookup, aggregate, compare, list, exists]
  - lookup: finding specific bill(s)
  - aggregate: calculating totals, averages, counts
  - compare: comparing periods or categories
  - list: listing bills matching criteria
  - exists: checking if something exists (yes/no)
- category: if they mention a bill type, one of:
  electricity, water, gas, internet, mobile, groceries, medical,
  insurance, rent, maintenance, fuel, other
- vendor: if they mention a specific company
- time_reference: the time period as written, like "last month", "this year", "January", "2024"
- payment_status: paid, unpaid or overdue if they mention it
- aggregation: for aggregate queries: sum, count, average, min, max
- group_by: if they want a breakdown: category, vendor, month, year
- limit: how many bills they want listed, if they say

Leave out any field the question does not mention.

Examples:
"Did I pay the electricity bill last month?" ->
{"query_type": "exists", "category": "electricity", "time_reference": "last month", "payment_status": "paid"}

"How much did I spend on groceries this year?" ->
{"query_type": "aggregate", "category": "groceries", "time_reference": "this year", "aggregation": "sum"}

"List all unpaid bills" ->
{"query_type": "list", "payment_status": "unpaid"}

Respond with ONLY the JSON object, no explanation.`

const answerPrompt = `You are answering a question about household bills using ONLY the data provided.

Original question: %q

Query performed: %s

Results found: %d

Data:
%s

Write a short, friendly answer.
- Use simple language
- If asked yes/no, answer clearly first
- Keep it concise

IMPORTANT: Use ONLY the data above. Do NOT add any information not in the data.
If the data doesn't fully answer the question, say what you can and acknowledge the limitation.`
