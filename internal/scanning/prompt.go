package scanning

// billScanPrompt is shared by every model provider
const billScanPrompt = `You are analyzing a household bill or invoice. Carefully read all text in the image and extract the following information:

1. **Vendor**: the company that issued the bill, usually in the header. Examples: "BESCOM", "Airtel", "Apollo Pharmacy".
2. **Bill number**: the invoice, bill, receipt or account statement number.
3. **Dates**: the bill date, the due date, and the billing period if one is printed. Use YYYY-MM-DD.
4. **Amounts**: the subtotal, the tax, and the final total or amount payable. Numbers only, no currency symbols.
5. **Category**: one of electricity, water, gas, internet, mobile, groceries, medical, insurance, rent, maintenance, fuel, other.
6. **Confidence**: how sure you are of the extraction overall, from 0 to 1.

Return ONLY valid JSON in this exact format:
{
  "vendor_name": "Vendor",
  "bill_number": "INV-123",
  "bill_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD",
  "billing_period_start": "YYYY-MM-DD",
  "billing_period_end": "YYYY-MM-DD",
  "subtotal": 0.00,
  "tax_amount": 0.00,
  "total_amount": 0.00,
  "category": "other",
  "confidence": 0.0
}

Important:
- If you cannot find a field, use null for that field. Never guess a date.
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
